package extract

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/mcdonaldj/zipwatch/internal/adapters/osfs"
	"github.com/mcdonaldj/zipwatch/internal/adapters/procscan"
	"github.com/mcdonaldj/zipwatch/internal/adapters/trash"
	"github.com/mcdonaldj/zipwatch/internal/adapters/ziparchiver"
	"github.com/mcdonaldj/zipwatch/internal/ports"
)

// Pipeline handles one archive at a time: name the target, extract into
// it, then recycle the archive. It keeps no state between events and is
// safe for concurrent use when its dependencies are.
type Pipeline struct {
	fs       ports.FileSystem
	archiver ports.Archiver
	recycler ports.RecycleDeleter
	namer    *Namer
	log      *zap.SugaredLogger
	now      func() time.Time
}

// NewPipeline creates a pipeline with the given dependencies.
func NewPipeline(fs ports.FileSystem, archiver ports.Archiver, recycler ports.RecycleDeleter, log *zap.SugaredLogger) *Pipeline {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Pipeline{
		fs:       fs,
		archiver: archiver,
		recycler: recycler,
		namer:    NewNamer(fs),
		log:      log,
		now:      time.Now,
	}
}

// NewDefaultPipeline creates a pipeline with real production dependencies.
// trashDir overrides the platform trash; checkOpen enables the open-handle
// probe before recycling.
func NewDefaultPipeline(trashDir string, checkOpen bool, log *zap.SugaredLogger) *Pipeline {
	var inUse ports.InUseChecker
	if checkOpen {
		inUse = procscan.New()
	}
	return NewPipeline(
		osfs.New(),
		ziparchiver.New(),
		trash.NewDefault(trashDir, inUse),
		log,
	)
}

// Handle extracts the event's archive and recycles it on success. Every
// failure is reported in the Outcome and logged; nothing is returned as an
// error and partial output is left for inspection.
func (p *Pipeline) Handle(ctx context.Context, ev ArchiveEvent) (out Outcome) {
	out = Outcome{Event: ev, Started: p.now()}
	defer func() { out.Finished = p.now() }()

	log := p.log.With("archive", ev.Path)

	out.Target, out.Entries, out.Err = p.extract(ctx, ev.Path)
	if out.Err != nil {
		log.Errorw("extraction failed",
			"target", out.Target,
			"entries", out.Entries,
			"kind", Kind(out.Err),
			"error", out.Err)
		return out
	}
	log.Infow("archive extracted",
		"target", out.Target,
		"entries", out.Entries)

	out.Disposal.Attempted = true
	out.Disposal.Dest, out.Disposal.OK = p.recycler.Delete(ev.Path)
	if !out.Disposal.OK {
		log.Warnw("archive left in place, could not move it to the trash")
		return out
	}
	log.Infow("archive moved to trash", "dest", out.Disposal.Dest)
	return out
}

// extract opens the archive before creating anything so an unreadable file
// leaves no directory behind. The archive is closed before returning.
func (p *Pipeline) extract(ctx context.Context, archivePath string) (string, int, error) {
	arc, err := p.archiver.Open(archivePath)
	if err != nil {
		return "", 0, err
	}
	defer func() {
		if err := arc.Close(); err != nil {
			p.log.Debugw("closing archive", "archive", archivePath, "error", err)
		}
	}()

	target, err := p.namer.Resolve(TargetName(archivePath))
	if err != nil {
		return "", 0, err
	}
	// Mkdir, not MkdirAll: a directory that appeared since Resolve is
	// someone else's and must not be merged into.
	if err := p.fs.Mkdir(target, 0o755); err != nil {
		return "", 0, errors.Mark(errors.Wrapf(err, "creating %s", target), ports.ErrDirectoryCreation)
	}

	entries, err := arc.Extract(ctx, target)
	return target, entries, err
}

// Kind names the failure class of err for logs and history.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ports.ErrArchiveOpen):
		return "archive_open"
	case errors.Is(err, ports.ErrPathEscape):
		return "path_escape"
	case errors.Is(err, ports.ErrDirectoryCreation):
		return "directory_creation"
	case errors.Is(err, ports.ErrEntryExtraction):
		return "entry_extraction"
	default:
		return "unknown"
	}
}
