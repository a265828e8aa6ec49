// Package download fetches WebDriver binaries, and optionally the browsers
// they drive, into the directory searched for drivers not found on PATH.
package download

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/blang/semver"
	"github.com/golang/glog"
	"github.com/google/go-github/v27/github"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
)

// File describes how to download a file from the Web.
type File struct {
	url      string
	Name     string
	hash     string
	hashType string // default is sha256
	// Rename, if set, moves Rename[0] to Rename[1] after unpacking.
	Rename []string
	// Browser is set for browsers, as opposed to drivers.
	Browser bool
	// The directory in which to store the file.
	directory string
}

func (f File) Path() string {
	if f.directory != "" {
		return filepath.Join(f.directory, f.Name)
	}
	return f.Name
}

// URL is where the file is downloaded from.
func (f File) URL() string {
	return f.url
}

// Options selects what Plan downloads.
type Options struct {
	// Browsers also downloads Chromium and Firefox.
	Browsers bool
	// Latest ignores the pinned versions and picks the newest available.
	Latest bool
	// HTTPClient is used for every request. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// GitHub is used to look up geckodriver releases. Defaults to an
	// unauthenticated client.
	GitHub *github.Client
}

const (
	// desiredChromeBuild is the known build of Chromium to download from the
	// chromium-browser-snapshots/Linux_x64 bucket.
	desiredChromeBuild = "664981" // This corresponds to version 76.0.3809.0

	// desiredFirefoxVersion is the known version of Firefox to download.
	desiredFirefoxVersion = "68.0.1"

	// desiredGeckodriverVersion is the known geckodriver release.
	desiredGeckodriverVersion = "0.24.0"
)

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return http.DefaultClient
}

// Plan lists the files to download. Sources that cannot be reached are logged
// and left out; Plan fails only if nothing can be downloaded.
func Plan(ctx context.Context, opts Options) ([]File, error) {
	var files []File

	chromeBuild, geckoVersion, firefoxVersion := desiredChromeBuild, desiredGeckodriverVersion, desiredFirefoxVersion
	if opts.Latest {
		chromeBuild, geckoVersion, firefoxVersion = "", "", ""
	}

	client, err := storage.NewClient(ctx, option.WithHTTPClient(opts.httpClient()))
	if err != nil {
		glog.Errorf("Cannot create a storage client for downloading chromedriver: %v", err)
	} else {
		defer client.Close()
		chrome, err := ChromeFiles(ctx, client, chromeBuild, opts.Browsers)
		if err != nil {
			glog.Errorf("Unable to find chromedriver: %v", err)
		}
		files = append(files, chrome...)
	}

	gh := opts.GitHub
	if gh == nil {
		gh = github.NewClient(opts.httpClient())
	}
	gecko, err := GeckodriverFile(ctx, gh, geckoVersion)
	if err != nil {
		glog.Errorf("Unable to find geckodriver: %v", err)
	} else {
		files = append(files, gecko)
	}

	if opts.Browsers {
		files = append(files, FirefoxFile(firefoxVersion))
	}

	if len(files) == 0 {
		return nil, errors.New("no WebDriver binaries could be located")
	}
	return files, nil
}

// ChromeFiles describes chromedriver, and Chromium if browser is set, from
// the given build of the chromium-browser-snapshots bucket. If build is
// empty, the latest build is used.
func ChromeFiles(ctx context.Context, client *storage.Client, build string, browser bool) ([]File, error) {
	const (
		// Bucket URL: https://console.cloud.google.com/storage/browser/chromium-browser-snapshots
		storageBktName             = "chromium-browser-snapshots"
		prefixLinux64              = "Linux_x64"
		lastChangeFile             = "Linux_x64/LAST_CHANGE"
		chromeFilename             = "chrome-linux.zip"
		chromeDriverFilename       = "chromedriver_linux64.zip"
		chromeDriverTargetFilename = "chromedriver.zip"
	)
	gcsPath := fmt.Sprintf("gs://%s/", storageBktName)
	bkt := client.Bucket(storageBktName)
	if build == "" {
		r, err := bkt.Object(lastChangeFile).NewReader(ctx)
		if err != nil {
			return nil, fmt.Errorf("cannot create a reader for %s%s file: %v", gcsPath, lastChangeFile, err)
		}
		defer r.Close()
		// Read the last change file content for the latest build directory name
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("cannot read from %s%s file: %v", gcsPath, lastChangeFile, err)
		}
		build = strings.TrimSpace(string(data))
	}

	var files []File
	driverPackage := path.Join(prefixLinux64, build, chromeDriverFilename)
	attrs, err := bkt.Object(driverPackage).Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot get the chrome driver package %s%s attrs: %v", gcsPath, driverPackage, err)
	}
	files = append(files, File{
		Name:     chromeDriverTargetFilename,
		url:      attrs.MediaLink,
		hash:     hex.EncodeToString(attrs.MD5),
		hashType: "md5",
		Rename:   []string{"chromedriver_linux64/chromedriver", "chromedriver"},
	})

	if browser {
		chromePackage := path.Join(prefixLinux64, build, chromeFilename)
		attrs, err := bkt.Object(chromePackage).Attrs(ctx)
		if err != nil {
			return nil, fmt.Errorf("cannot get the chrome package %s%s attrs: %v", gcsPath, chromePackage, err)
		}
		files = append(files, File{
			Name:     chromeFilename,
			Browser:  true,
			url:      attrs.MediaLink,
			hash:     hex.EncodeToString(attrs.MD5),
			hashType: "md5",
		})
	}
	return files, nil
}

var geckodriverAsset = regexp.MustCompile(`^geckodriver-v.*-linux64\.tar\.gz$`)

// GeckodriverFile describes the linux64 geckodriver archive of the given
// release, or of the newest stable release if version is empty.
func GeckodriverFile(ctx context.Context, client *github.Client, version string) (File, error) {
	releases, _, err := client.Repositories.ListReleases(ctx, "mozilla", "geckodriver", &github.ListOptions{PerPage: 100})
	if err != nil {
		return File{}, err
	}
	rel, v, err := pickRelease(releases, version)
	if err != nil {
		return File{}, err
	}
	for _, a := range rel.Assets {
		if !geckodriverAsset.MatchString(a.GetName()) {
			continue
		}
		u := a.GetBrowserDownloadURL()
		if u == "" {
			return File{}, fmt.Errorf("%s does not have a download URL", a.GetName())
		}
		glog.V(1).Infof("Using geckodriver %s", v)
		return File{Name: "geckodriver.tar.gz", url: u}, nil
	}
	return File{}, fmt.Errorf("release %s has no linux64 asset at http://github.com/mozilla/geckodriver/releases", rel.GetTagName())
}

// pickRelease returns the release tagged want, or the newest non-draft,
// non-prerelease release if want is empty. Tags that are not semantic
// versions are ignored.
func pickRelease(releases []*github.RepositoryRelease, want string) (*github.RepositoryRelease, semver.Version, error) {
	var wantVersion semver.Version
	if want != "" {
		v, err := semver.ParseTolerant(want)
		if err != nil {
			return nil, semver.Version{}, fmt.Errorf("invalid version %q: %v", want, err)
		}
		wantVersion = v
	}

	var (
		best        *github.RepositoryRelease
		bestVersion semver.Version
	)
	for _, rel := range releases {
		v, err := semver.ParseTolerant(rel.GetTagName())
		if err != nil {
			continue
		}
		if want != "" {
			if v.Equals(wantVersion) {
				return rel, v, nil
			}
			continue
		}
		if rel.GetDraft() || rel.GetPrerelease() || len(v.Pre) > 0 {
			continue
		}
		if best == nil || v.GT(bestVersion) {
			best, bestVersion = rel, v
		}
	}
	if best == nil {
		if want != "" {
			return nil, semver.Version{}, fmt.Errorf("no release %s", want)
		}
		return nil, semver.Version{}, errors.New("no stable release")
	}
	return best, bestVersion, nil
}

// FirefoxFile describes the given Firefox release, or the latest nightly if
// version is empty.
func FirefoxFile(version string) File {
	if version == "" {
		return File{
			url:     "https://download.mozilla.org/?product=firefox-nightly-latest-ssl&os=linux64&lang=en-US",
			Name:    "firefox-nightly.tar.bz2",
			Browser: true,
			Rename:  []string{"firefox", "firefox-nightly"},
		}
	}
	return File{
		url:     "https://download-installer.cdn.mozilla.net/pub/firefox/releases/" + url.PathEscape(version) + "/linux-x86_64/en-US/firefox-" + url.PathEscape(version) + ".tar.bz2",
		Name:    "firefox.tar.bz2",
		Browser: true,
	}
}

// Download fetches file into directory unless a copy with the expected
// checksum is already there, unpacks it and installs the binary under the
// name FindDriver looks for. An empty directory means the working directory.
func Download(ctx context.Context, client *http.Client, file File, directory string) error {
	file.directory = directory
	if cached(file) {
		glog.V(1).Infof("%s is up to date", file.Path())
	} else {
		glog.Infof("fetching %s from %s", file.Name, file.url)
		if err := fetch(ctx, client, file); err != nil {
			return err
		}
	}
	if err := unpack(file); err != nil {
		return err
	}
	return install(file)
}

// DownloadAll runs Download for every file in parallel. The first failure
// cancels the downloads still in flight.
func DownloadAll(ctx context.Context, client *http.Client, directory string, files []File) error {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, file := range files {
		file := file
		g.Go(func() error {
			if err := Download(ctx, client, file, directory); err != nil {
				return fmt.Errorf("%s: %w", file.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (f File) algorithm() string {
	if f.hashType == "" {
		return "sha256"
	}
	return strings.ToLower(f.hashType)
}

func checksum(algorithm string) hash.Hash {
	switch algorithm {
	case "md5":
		return md5.New()
	case "sha1":
		return sha1.New()
	default:
		return sha256.New()
	}
}

// fetch writes the response body next to the target and renames it into
// place only once the checksum matches, so an interrupted or corrupt
// transfer never looks cached.
func fetch(ctx context.Context, client *http.Client, file File) error {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.url, nil)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", file.Name, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", file.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s from %s: unexpected status %s", file.Name, file.url, resp.Status)
	}

	partial := file.Path() + ".part"
	out, err := os.Create(partial)
	if err != nil {
		return err
	}
	sum := checksum(file.algorithm())
	_, err = io.Copy(io.MultiWriter(out, sum), resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(partial)
		return fmt.Errorf("writing %s: %w", file.Name, err)
	}
	if file.hash != "" {
		if got := hex.EncodeToString(sum.Sum(nil)); got != file.hash {
			os.Remove(partial)
			return fmt.Errorf("%s checksum mismatch: %s is %s, want %s", file.Name, file.algorithm(), got, file.hash)
		}
	}
	return os.Rename(partial, file.Path())
}

// cached reports whether file is already on disk with the expected checksum.
// Files without a published checksum are always fetched again.
func cached(file File) bool {
	if file.hash == "" {
		return false
	}
	f, err := os.Open(file.Path())
	if err != nil {
		return false
	}
	defer f.Close()
	sum := checksum(file.algorithm())
	if _, err := io.Copy(sum, f); err != nil {
		return false
	}
	if got := hex.EncodeToString(sum.Sum(nil)); got != file.hash {
		glog.Warningf("%s on disk has %s %s, want %s; fetching again", file.Path(), file.algorithm(), got, file.hash)
		return false
	}
	return true
}

// unpackCommand returns the command extracting file into its directory, or
// nil if file is not an archive.
func unpackCommand(file File) []string {
	dir := file.directory
	if dir == "" {
		dir = "."
	}
	switch {
	case strings.HasSuffix(file.Name, ".zip"):
		return []string{"unzip", "-o", "-q", file.Path(), "-d", dir}
	case strings.HasSuffix(file.Name, ".tar.gz"), strings.HasSuffix(file.Name, ".tgz"):
		return []string{"tar", "-xzf", file.Path(), "-C", dir}
	case strings.HasSuffix(file.Name, ".tar.bz2"):
		return []string{"tar", "-xjf", file.Path(), "-C", dir}
	}
	return nil
}

func unpack(file File) error {
	args := unpackCommand(file)
	if args == nil {
		return nil
	}
	glog.V(1).Infof("unpacking %s", file.Path())
	if out, err := exec.Command(args[0], args[1:]...).CombinedOutput(); err != nil {
		return fmt.Errorf("unpacking %s: %v: %s", file.Name, err, bytes.TrimSpace(out))
	}
	return nil
}

// install moves the unpacked Rename[0] to Rename[1], replacing an older copy.
func install(file File) error {
	if len(file.Rename) != 2 {
		return nil
	}
	from := filepath.Join(file.directory, file.Rename[0])
	to := filepath.Join(file.directory, file.Rename[1])
	if err := os.RemoveAll(to); err != nil {
		return fmt.Errorf("replacing %s: %w", to, err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("installing %s: %w", file.Rename[1], err)
	}
	glog.Infof("installed %s", to)
	return nil
}
