package wizard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/imamik/peupgrade/internal/config"
	"github.com/imamik/peupgrade/internal/remote"
)

// DownloadModeOptions are the download_mode choices.
var DownloadModeOptions = []huh.Option[string]{
	huh.NewOption("Download locally, upload to nodes", string(config.DownloadUpload)),
	huh.NewOption("Each node downloads directly", string(config.DownloadDirect)),
	huh.NewOption("Download from S3 mirror, upload to nodes", string(config.DownloadS3)),
}

func (r *WizardResult) usesPCP() bool {
	hosts := append([]string{r.PrimaryHost, r.ReplicaHost, r.PrimaryDatabaseHost, r.ReplicaDatabaseHost}, r.CompilerHosts...)
	for _, h := range hosts {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(h)), string(remote.ProtocolPCP)+"://") {
			return true
		}
	}
	return false
}

func defaultOrchestratorURL(primary string) string {
	t, err := remote.ParseTarget(primary)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("https://%s:%d", t.Host, config.OrchestratorPort)
}
