package pipeline

import (
	"errors"
	"fmt"

	"git.home.luguber.info/inful/releaser/internal/eventstore"
	ferrors "git.home.luguber.info/inful/releaser/internal/foundation/errors"
	"git.home.luguber.info/inful/releaser/internal/release"
)

// classify wraps the failure of stage into a ClassifiedError whose category
// selects the CLI exit code. The typed release errors stay reachable through
// errors.As.
func classify(runID string, stage release.StageName, err error) error {
	var (
		invalid   *release.InvalidVersionError
		locked    *eventstore.LockedError
		tagExists *release.TagExistsError
		drift     *release.WorktreeDriftError
		buildErr  *release.BuildFailedError
		createErr *release.ReleaseCreateError
		uploadErr *release.AssetUploadError
		pubErr    *release.PublishError
	)
	msg := fmt.Sprintf("release failed at %s", stage)

	var b *ferrors.ErrorBuilder
	switch {
	case errors.As(err, &invalid):
		b = ferrors.ValidationError(msg)
	case errors.As(err, &locked):
		b = ferrors.NewError(ferrors.CategoryRuntime, msg).UserAction()
	case ferrors.HasCategory(err, ferrors.CategoryAuth):
		b = ferrors.AuthError(msg)
	case errors.As(err, &tagExists):
		b = ferrors.NewError(ferrors.CategoryAlreadyExists, msg).Fatal()
	case errors.As(err, &drift):
		b = ferrors.GitError(msg).UserAction()
	case errors.As(err, &buildErr):
		b = ferrors.BuildError(msg)
	case errors.As(err, &createErr), errors.As(err, &uploadErr):
		b = ferrors.NewError(ferrors.CategoryForge, msg)
	case errors.As(err, &pubErr):
		b = ferrors.RegistryError(msg)
	default:
		if ce, ok := ferrors.AsClassified(err); ok {
			b = ferrors.NewError(ce.Category(), msg).WithSeverity(ce.Severity())
		} else if stage == release.StageTagging {
			b = ferrors.GitError(msg)
		} else {
			b = ferrors.InternalError(msg)
		}
	}
	return b.WithCause(err).
		WithContext("stage", string(stage)).
		WithContext("run_id", runID).
		Build()
}
