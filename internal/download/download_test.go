package download

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-github/v27/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func release(tag string, prerelease bool, assets ...string) *github.RepositoryRelease {
	rel := &github.RepositoryRelease{
		TagName:    github.String(tag),
		Prerelease: github.Bool(prerelease),
	}
	for _, a := range assets {
		rel.Assets = append(rel.Assets, github.ReleaseAsset{
			Name:               github.String(a),
			BrowserDownloadURL: github.String("https://example.com/" + tag + "/" + a),
		})
	}
	return rel
}

func TestPickRelease(t *testing.T) {
	releases := []*github.RepositoryRelease{
		release("v0.24.0", false),
		release("v0.26.0", false),
		release("v0.27.0-beta", true),
		release("nightly", false),
		release("v0.9.1", false),
	}

	rel, v, err := pickRelease(releases, "")
	require.NoError(t, err)
	assert.Equal(t, "v0.26.0", rel.GetTagName())
	assert.Equal(t, "0.26.0", v.String())

	rel, _, err = pickRelease(releases, "0.24.0")
	require.NoError(t, err)
	assert.Equal(t, "v0.24.0", rel.GetTagName())

	_, _, err = pickRelease(releases, "0.1.0")
	assert.Error(t, err)
	_, _, err = pickRelease(releases, "not a version")
	assert.Error(t, err)
	_, _, err = pickRelease([]*github.RepositoryRelease{release("nightly", false)}, "")
	assert.Error(t, err)
}

func TestGeckodriverFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/mozilla/geckodriver/releases" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode([]*github.RepositoryRelease{
			release("v0.25.0", false, "geckodriver-v0.25.0-linux64.tar.gz", "geckodriver-v0.25.0-win64.zip"),
			release("v0.26.0", false, "geckodriver-v0.26.0-macos.tar.gz"),
		})
	}))
	defer srv.Close()

	client := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	f, err := GeckodriverFile(context.Background(), client, "0.25.0")
	require.NoError(t, err)
	assert.Equal(t, "geckodriver.tar.gz", f.Name)
	assert.Equal(t, "https://example.com/v0.25.0/geckodriver-v0.25.0-linux64.tar.gz", f.URL())

	_, err = GeckodriverFile(context.Background(), client, "")
	assert.Error(t, err, "the newest release has no linux64 asset")
}

func TestFirefoxFile(t *testing.T) {
	f := FirefoxFile("68.0.1")
	assert.True(t, f.Browser)
	assert.Equal(t, "https://download-installer.cdn.mozilla.net/pub/firefox/releases/68.0.1/linux-x86_64/en-US/firefox-68.0.1.tar.bz2", f.URL())

	nightly := FirefoxFile("")
	assert.Equal(t, "firefox-nightly.tar.bz2", nightly.Name)
	assert.Equal(t, []string{"firefox", "firefox-nightly"}, nightly.Rename)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestDownload(t *testing.T) {
	content := []byte("#!/bin/sh\necho driver\n")
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write(content)
	}))
	defer srv.Close()

	dir := t.TempDir()
	file := File{url: srv.URL + "/driver", Name: "driver", hash: sha256Hex(content)}
	ctx := context.Background()

	require.NoError(t, Download(ctx, srv.Client(), file, dir))
	got, err := os.ReadFile(filepath.Join(dir, "driver"))
	require.NoError(t, err)
	assert.Equal(t, content, got)

	require.NoError(t, Download(ctx, srv.Client(), file, dir))
	assert.EqualValues(t, 1, atomic.LoadInt32(&requests), "a file with a matching hash was downloaded again")

	bad := File{url: srv.URL + "/driver", Name: "other", hash: sha256Hex([]byte("different"))}
	err = Download(ctx, srv.Client(), bad, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
	assert.NoFileExists(t, filepath.Join(dir, "other"))
	assert.NoFileExists(t, filepath.Join(dir, "other.part"))
}

func TestDownloadInstallMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an archive"))
	}))
	defer srv.Close()

	file := File{url: srv.URL + "/driver", Name: "driver.bin", Rename: []string{"nested/driver", "driver"}}
	err := Download(context.Background(), srv.Client(), file, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "installing driver")
}

func TestUnpackCommand(t *testing.T) {
	tests := []struct {
		file File
		want []string
	}{
		{File{Name: "chromedriver.zip", directory: "vendor"}, []string{"unzip", "-o", "-q", "vendor/chromedriver.zip", "-d", "vendor"}},
		{File{Name: "geckodriver.tar.gz"}, []string{"tar", "-xzf", "geckodriver.tar.gz", "-C", "."}},
		{File{Name: "firefox.tar.bz2", directory: "vendor"}, []string{"tar", "-xjf", "vendor/firefox.tar.bz2", "-C", "vendor"}},
		{File{Name: "selenium-server.jar", directory: "vendor"}, nil},
	}
	for _, test := range tests {
		if diff := cmp.Diff(test.want, unpackCommand(test.file)); diff != "" {
			t.Errorf("unpackCommand(%q) returned diff (-want/+got):\n%s", test.file.Name, diff)
		}
	}
}

func TestDownloadHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	err := Download(context.Background(), srv.Client(), File{url: srv.URL + "/missing", Name: "missing"}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0755, Size: int64(len(body))}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestDownloadAll(t *testing.T) {
	if _, err := exec.LookPath("tar"); err != nil {
		t.Skip("tar is not installed")
	}
	archives := map[string][]byte{
		"/gecko.tar.gz":  tarGz(t, map[string]string{"geckodriver": "gecko"}),
		"/chrome.tar.gz": tarGz(t, map[string]string{"chromedriver_linux64/chromedriver": "chrome"}),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, ok := archives[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(b)
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "vendor")
	files := []File{
		{url: srv.URL + "/gecko.tar.gz", Name: "geckodriver.tar.gz"},
		{url: srv.URL + "/chrome.tar.gz", Name: "chromedriver.tar.gz", Rename: []string{"chromedriver_linux64/chromedriver", "chromedriver"}},
	}
	require.NoError(t, DownloadAll(context.Background(), srv.Client(), dir, files))

	for name, want := range map[string]string{"geckodriver": "gecko", "chromedriver": "chrome"} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Equal(t, want, string(got))
		fi, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.NotZero(t, fi.Mode().Perm()&0111, "%s is not executable", name)
	}

	files = append(files, File{url: srv.URL + "/missing.tar.gz", Name: "missing.tar.gz"})
	assert.Error(t, DownloadAll(context.Background(), srv.Client(), dir, files))
}
