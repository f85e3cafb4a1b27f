package release

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlatform(t *testing.T) {
	cases := []struct {
		in      string
		want    Platform
		wantErr bool
	}{
		{in: "linux-amd64", want: Platform{OS: "linux", Arch: "amd64"}},
		{in: "Darwin/ARM64", want: Platform{OS: "darwin", Arch: "arm64"}},
		{in: " windows-amd64 ", want: Platform{OS: "windows", Arch: "amd64"}},
		{in: "linux", wantErr: true},
		{in: "-amd64", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParsePlatform(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want.OS+"-"+tc.want.Arch, got.String())
		})
	}
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/gzip", ContentTypeFor("tool-1.2.0-linux-amd64.tar.gz"))
	assert.Equal(t, "application/zip", ContentTypeFor("tool-1.2.0-windows-amd64.zip"))
	assert.True(t, strings.HasPrefix(ContentTypeFor("checksums.txt"), "text/plain"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("tool"))
}

func TestTypedErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")
	var err error = &BuildFailedError{Platform: Platform{OS: "linux", Arch: "amd64"}, Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "linux-amd64")

	err = &StageError{Stage: StageTagging, Err: &TagExistsError{Tag: "v1.2.0"}}
	var tagErr *TagExistsError
	require.ErrorAs(t, err, &tagErr)
	assert.Equal(t, "v1.2.0", tagErr.Tag)
	assert.Contains(t, err.Error(), "tagging")
}

func TestReportStartsWithPendingStages(t *testing.T) {
	r := NewReport("run-1", "v1.2.0")
	require.Len(t, r.Stages, len(Stages))
	for _, s := range r.Stages {
		assert.Equal(t, StatusPending, s.Status)
	}
	assert.Equal(t, StateOf(StageResolving), r.CurrentState())
	assert.False(t, r.Succeeded())
}

func TestReportSucceededRequiresEveryStageAndItem(t *testing.T) {
	r := NewReport("run-1", "1.2.0")
	for _, st := range Stages {
		r.RecordStage(st, StatusSucceeded, time.Millisecond, nil)
	}
	r.AddItem(ItemOutcome{Stage: StageBuilding, Kind: ItemBuild, Name: "linux-amd64", Status: StatusSucceeded})
	r.SetState(StateDone)
	assert.True(t, r.Succeeded())

	r.AddItem(ItemOutcome{Stage: StagePublishingPackages, Kind: ItemTarget, Name: "pypi", Status: StatusFailed, Error: "401"})
	assert.False(t, r.Succeeded())
}

func TestReportSucceededAllowsUnconfiguredStages(t *testing.T) {
	r := NewReport("run-1", "1.2.0")
	for _, st := range Stages {
		r.RecordStage(st, StatusSucceeded, time.Millisecond, nil)
	}
	r.RecordStage(StagePublishingPackages, StatusSkipped, 0, nil)
	r.SetState(StateDone)
	assert.True(t, r.Succeeded())

	r.SetState(StateFailed)
	assert.False(t, r.Succeeded())
}

func TestReportConcurrentWrites(t *testing.T) {
	r := NewReport("run-1", "1.2.0")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.AddItem(ItemOutcome{Stage: StagePublishingRelease, Kind: ItemAsset, Name: "a", Status: StatusSucceeded})
			r.AddStageNote(StagePublishingPackages, "n")
		}()
	}
	wg.Wait()
	assert.Len(t, r.ItemsFor(ItemAsset), 50)
}

func TestReportSummaryAndJSON(t *testing.T) {
	r := NewReport("run-1", "v1.2.0")
	r.Tag = "v1.2.0"
	r.RecordStage(StageResolving, StatusSucceeded, 2*time.Millisecond, nil)
	r.RecordStage(StageBuilding, StatusFailed, time.Second, errors.New("build failed for linux-arm64"))
	r.AddItem(ItemOutcome{Stage: StageBuilding, Kind: ItemBuild, Name: "linux-arm64", Status: StatusFailed, Error: "exit status 1"})
	r.SetState(StateFailed)
	r.Finish()

	sum := r.Summary()
	assert.Contains(t, sum, "release v1.2.0: failed")
	assert.Contains(t, sum, "linux-arm64")
	assert.Contains(t, sum, "exit status 1")
	assert.Equal(t, []StageName{StageBuilding}, r.FailedStages())

	data, err := json.Marshal(r)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "failed", decoded["state"])
	assert.Equal(t, "run-1", decoded["run_id"])
}
