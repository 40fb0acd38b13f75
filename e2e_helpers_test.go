//go:build !ci

package syntaxstudio_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	dockerImage           = "chromedp/headless-shell:stable"
	chromeContainerPrefix = "chrome-e2e-syntaxstudio-"
)

// DockerChrome is a chromedp context backed by a headless Chrome container.
type DockerChrome struct {
	Context    context.Context
	ChromePort int
}

// SetupDockerChrome starts a headless Chrome container and connects chromedp
// to it. The test is skipped when Docker is unavailable. Call cleanup when
// done.
func SetupDockerChrome(t *testing.T, timeout time.Duration) (*DockerChrome, func()) {
	t.Helper()

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("Failed to allocate Chrome port: %v", err)
	}
	if err := startDockerChrome(t, port); err != nil {
		t.Fatalf("Failed to start Docker Chrome: %v", err)
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), fmt.Sprintf("http://localhost:%d", port))
	ctx, ctxCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(t.Logf))
	ctx, timeoutCancel := context.WithTimeout(ctx, timeout)

	cleanup := func() {
		timeoutCancel()
		ctxCancel()
		allocCancel()
		stopDockerChrome(t, port)
	}
	return &DockerChrome{Context: ctx, ChromePort: port}, cleanup
}

func getFreePort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func startDockerChrome(t *testing.T, debugPort int) error {
	t.Helper()

	if _, err := exec.Command("docker", "version").CombinedOutput(); err != nil {
		t.Skip("Docker not available, skipping E2E test")
	}

	name := fmt.Sprintf("%s%d", chromeContainerPrefix, debugPort)
	_, _ = exec.Command("docker", "rm", "-f", name).CombinedOutput()

	if _, err := exec.Command("docker", "image", "inspect", dockerImage).CombinedOutput(); err != nil {
		t.Log("Pulling chromedp/headless-shell Docker image...")
		pullCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if output, err := exec.CommandContext(pullCtx, "docker", "pull", dockerImage).CombinedOutput(); err != nil {
			if pullCtx.Err() == context.DeadlineExceeded {
				t.Fatal("Docker pull timed out after 60 seconds")
			}
			t.Fatalf("Failed to pull Docker image: %v\nOutput: %s", err, output)
		}
	}

	// Linux shares the host network; elsewhere Docker runs in a VM and the
	// container's 9222 is mapped instead.
	args := []string{"run", "-d", "--rm", "--memory", "512m", "--cpus", "0.5", "--name", name}
	if runtime.GOOS == "linux" {
		args = append(args, "--network", "host", dockerImage, fmt.Sprintf("--remote-debugging-port=%d", debugPort))
	} else {
		args = append(args, "-p", fmt.Sprintf("%d:9222", debugPort), dockerImage)
	}
	if _, err := exec.Command("docker", args...).Output(); err != nil {
		return fmt.Errorf("failed to start Chrome Docker container: %w", err)
	}

	versionURL := fmt.Sprintf("http://localhost:%d/json/version", debugPort)
	client := &http.Client{Timeout: 2 * time.Second}
	var lastErr error
	for i := 0; i < 120; i++ {
		resp, err := client.Get(versionURL)
		if err == nil {
			resp.Body.Close()
			t.Logf("Chrome ready after %.1fs", float64(i+1)*0.5)
			return nil
		}
		lastErr = err
		time.Sleep(500 * time.Millisecond)
	}

	if output, err := exec.Command("docker", "logs", "--tail", "50", name).CombinedOutput(); err == nil && len(output) > 0 {
		t.Logf("Chrome container logs:\n%s", output)
	}
	_, _ = exec.Command("docker", "rm", "-f", name).CombinedOutput()
	return fmt.Errorf("Chrome failed to start within 60 seconds: %w", lastErr)
}

func stopDockerChrome(t *testing.T, debugPort int) {
	t.Helper()
	name := fmt.Sprintf("%s%d", chromeContainerPrefix, debugPort)
	if output, err := exec.Command("docker", "rm", "-f", name).CombinedOutput(); err != nil {
		if !strings.Contains(string(output), "No such container") {
			t.Logf("Warning: Failed to remove Docker container: %v (output: %s)", err, output)
		}
	}
}

// chromeURL rewrites an httptest URL so the browser in the container can
// reach it.
func chromeURL(serverURL string) string {
	host := "localhost"
	if runtime.GOOS != "linux" {
		host = "host.docker.internal"
	}
	for _, loopback := range []string{"127.0.0.1", "[::1]", "localhost"} {
		if strings.Contains(serverURL, loopback) {
			return strings.Replace(serverURL, loopback, host, 1)
		}
	}
	return serverURL
}
