package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/imamik/peupgrade/internal/config"
	"github.com/imamik/peupgrade/internal/remote"
	"github.com/imamik/peupgrade/internal/util/async"
)

// Mirror downloads objects from an S3-compatible bucket.
type Mirror interface {
	Download(ctx context.Context, bucket, key string, w io.Writer) (int64, error)
}

// Stager places the tarball on targets.
type Stager struct {
	Exec       remote.Executor
	Mode       config.DownloadMode
	StagingDir string
	UploadDir  string

	// HTTPClient is used for local downloads in upload mode.
	HTTPClient *http.Client

	// Mirror and MirrorBucket are used in s3 mode.
	Mirror       Mirror
	MirrorBucket string
}

// Ensure guarantees a complete copy of a on every target and returns the
// remote path. A failure on any target fails the call.
func (s *Stager) Ensure(ctx context.Context, targets []remote.Target, a Artifact) (string, error) {
	remotePath := a.RemotePath(s.UploadDir)

	switch s.Mode {
	case config.DownloadDirect:
		if err := s.direct(ctx, targets, a.URL, remotePath); err != nil {
			return "", err
		}
	case config.DownloadUpload, config.DownloadS3:
		local, err := s.fetchLocal(ctx, a)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrTransfer, err)
		}
		if err := s.Place(ctx, targets, local, remotePath); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("%w: unknown download mode %q", ErrTransfer, s.Mode)
	}

	return remotePath, nil
}

// Place uploads a local file to every target, skipping targets that
// already hold a file of the same size and verifying the size afterwards.
func (s *Stager) Place(ctx context.Context, targets []remote.Target, localPath, remotePath string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransfer, err)
	}
	size := info.Size()

	tasks := make([]async.Task, 0, len(targets))
	for _, t := range targets {
		tasks = append(tasks, async.Task{
			Name: t.Name,
			Func: func(ctx context.Context) error {
				if got, err := remoteSize(ctx, s.Exec, t, remotePath); err == nil && got == size {
					return nil
				}
				if err := s.Exec.Upload(ctx, t, localPath, remotePath); err != nil {
					return err
				}
				got, err := remoteSize(ctx, s.Exec, t, remotePath)
				if err != nil {
					return err
				}
				if got != size {
					return fmt.Errorf("size mismatch after upload: %d != %d", got, size)
				}
				return nil
			},
		})
	}

	if err := async.RunParallel(ctx, tasks); err != nil {
		return fmt.Errorf("%w: %w", ErrTransfer, err)
	}
	return nil
}

func (s *Stager) direct(ctx context.Context, targets []remote.Target, url, remotePath string) error {
	cmd := fmt.Sprintf(
		"if [ ! -s %[1]s ]; then mkdir -p %[2]s && curl -fsSL --retry 3 -o %[1]s.part %[3]s && mv -f %[1]s.part %[1]s; fi",
		remote.Quote(remotePath), remote.Quote(path.Dir(remotePath)), remote.Quote(url))

	tasks := make([]async.Task, 0, len(targets))
	for _, t := range targets {
		tasks = append(tasks, async.Task{
			Name: t.Name,
			Func: func(ctx context.Context) error {
				_, err := remote.Check(ctx, s.Exec, t, cmd)
				return err
			},
		})
	}

	if err := async.RunParallel(ctx, tasks); err != nil {
		return fmt.Errorf("%w: %w", ErrTransfer, err)
	}
	return nil
}

// fetchLocal downloads the tarball into the staging directory unless a
// completed copy is already there. Partial downloads never carry the final
// name.
func (s *Stager) fetchLocal(ctx context.Context, a Artifact) (string, error) {
	if err := os.MkdirAll(s.StagingDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging dir: %w", err)
	}
	dest := filepath.Join(s.StagingDir, a.Filename)
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		return dest, nil
	}

	part := dest + ".part"
	f, err := os.Create(part)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", part, err)
	}

	if s.Mode == config.DownloadS3 {
		err = s.downloadMirror(ctx, a, f)
	} else {
		err = s.downloadHTTP(ctx, a.URL, f)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(part)
		return "", err
	}

	if err := os.Rename(part, dest); err != nil {
		return "", fmt.Errorf("failed to finalize %s: %w", dest, err)
	}
	return dest, nil
}

func (s *Stager) downloadMirror(ctx context.Context, a Artifact, w io.Writer) error {
	if s.Mirror == nil {
		return fmt.Errorf("no mirror configured")
	}
	if _, err := s.Mirror.Download(ctx, s.MirrorBucket, a.MirrorKey, w); err != nil {
		return fmt.Errorf("failed to download %s from mirror: %w", a.MirrorKey, err)
	}
	return nil
}

func (s *Stager) downloadHTTP(ctx context.Context, url string, w io.Writer) error {
	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: HTTP %d", url, resp.StatusCode)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return fmt.Errorf("short download of %s: %d of %d bytes", url, n, resp.ContentLength)
	}
	return nil
}

// remoteSize returns the size of a remote file, or -1 when it is absent.
func remoteSize(ctx context.Context, exec remote.Executor, t remote.Target, p string) (int64, error) {
	out, err := remote.Check(ctx, exec, t, fmt.Sprintf("stat -c %%s %s 2>/dev/null || echo -1", remote.Quote(p)))
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected stat output %q", out)
	}
	return n, nil
}
