package artifact

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/imamik/peupgrade/internal/remote"
)

const platformCommand = "cat /etc/os-release && echo '---' && uname -m"

// DetectPlatform interrogates a node and returns its PE platform tag.
func DetectPlatform(ctx context.Context, exec remote.Executor, t remote.Target) (string, error) {
	out, err := remote.Check(ctx, exec, t, platformCommand)
	if err != nil {
		return "", fmt.Errorf("failed to detect platform of %s: %w", t.Name, err)
	}
	osRelease, machine, ok := strings.Cut(out, "---")
	if !ok {
		return "", fmt.Errorf("unexpected platform probe output from %s", t.Name)
	}
	return ParsePlatform(osRelease, strings.TrimSpace(machine))
}

// ParsePlatform maps os-release content and a machine name to a PE platform
// tag such as el-8-x86_64, sles-15-x86_64 or ubuntu-22.04-amd64.
func ParsePlatform(osRelease, machine string) (string, error) {
	fields := parseOSRelease(osRelease)
	id := fields["ID"]
	version := fields["VERSION_ID"]
	major, _, _ := strings.Cut(version, ".")

	if version == "" {
		return "", fmt.Errorf("os-release has no VERSION_ID")
	}

	switch {
	case id == "ubuntu":
		arch, err := debianArch(machine)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ubuntu-%s-%s", version, arch), nil
	case id == "sles" || id == "sled":
		return fmt.Sprintf("sles-%s-%s", major, machine), nil
	case isEL(id, fields["ID_LIKE"]):
		if machine != "x86_64" && machine != "aarch64" {
			return "", fmt.Errorf("unsupported architecture %q", machine)
		}
		return fmt.Sprintf("el-%s-%s", major, machine), nil
	}
	return "", fmt.Errorf("unsupported operating system %q %s", id, version)
}

func isEL(id, idLike string) bool {
	switch id {
	case "rhel", "centos", "rocky", "almalinux", "ol", "scientific":
		return true
	}
	for _, like := range strings.Fields(idLike) {
		if like == "rhel" {
			return true
		}
	}
	return false
}

func debianArch(machine string) (string, error) {
	switch machine {
	case "x86_64", "amd64":
		return "amd64", nil
	case "aarch64", "arm64":
		return "arm64", nil
	}
	return "", fmt.Errorf("unsupported architecture %q", machine)
}

func parseOSRelease(content string) map[string]string {
	fields := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		fields[k] = strings.Trim(v, `"'`)
	}
	return fields
}
