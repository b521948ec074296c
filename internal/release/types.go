// Package release turns a tool spec and a platform into a concrete download.
//
// Static tools render a version-pinned URL template. Dynamic tools query the
// latest release of a GitHub repository and pick the first asset whose name
// contains the platform pattern. Resolution never downloads the asset.
package release

// Asset is one downloadable file attached to a release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// Metadata is a latest-release response. Assets keep API order.
type Metadata struct {
	TagName string  `json:"tag_name"`
	Assets  []Asset `json:"assets"`
}

// AssetNames returns the names of m's assets in order.
func (m *Metadata) AssetNames() []string {
	names := make([]string, len(m.Assets))
	for i, a := range m.Assets {
		names[i] = a.Name
	}
	return names
}

// Resolved is the asset chosen for one installation attempt.
type Resolved struct {
	Tool string
	URL  string
	// FileName decides the extraction format.
	FileName string
	// Version is the release tag for dynamic tools and the pin for static ones.
	Version string
	// Size is the advertised size, 0 when unknown.
	Size int64
}
