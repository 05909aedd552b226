package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/punkhunt/internal/config"
)

// Manifest is the Farcaster mini-app manifest.
type Manifest struct {
	AccountAssociation *AccountAssociation `json:"accountAssociation,omitempty"`
	BaseBuilder        *BaseBuilder        `json:"baseBuilder,omitempty"`
	MiniApp            MiniApp             `json:"miniapp"`
}

// AccountAssociation is the signed domain ownership proof.
type AccountAssociation struct {
	Header    string `json:"header"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// BaseBuilder lists the addresses allowed to manage the app.
type BaseBuilder struct {
	AllowedAddresses []string `json:"allowedAddresses"`
}

// MiniApp describes the app. Empty fields are omitted.
type MiniApp struct {
	Version               string   `json:"version"`
	Name                  string   `json:"name,omitempty"`
	HomeURL               string   `json:"homeUrl,omitempty"`
	IconURL               string   `json:"iconUrl,omitempty"`
	SplashImageURL        string   `json:"splashImageUrl,omitempty"`
	SplashBackgroundColor string   `json:"splashBackgroundColor,omitempty"`
	Subtitle              string   `json:"subtitle,omitempty"`
	Description           string   `json:"description,omitempty"`
	ScreenshotURLs        []string `json:"screenshotUrls,omitempty"`
	PrimaryCategory       string   `json:"primaryCategory,omitempty"`
	Tags                  []string `json:"tags,omitempty"`
}

// BuildManifest assembles the manifest from configuration.
func BuildManifest(m config.ManifestConfig) Manifest {
	out := Manifest{MiniApp: MiniApp{
		Version:               "1",
		Name:                  m.Name,
		HomeURL:               m.URL,
		IconURL:               m.IconURL,
		SplashImageURL:        m.SplashImageURL,
		SplashBackgroundColor: m.SplashBackground,
		Subtitle:              m.Subtitle,
		Description:           m.Description,
		ScreenshotURLs:        m.Screenshots,
		PrimaryCategory:       m.Category,
		Tags:                  m.Tags,
	}}
	if m.Header != "" || m.Payload != "" || m.Signature != "" {
		out.AccountAssociation = &AccountAssociation{Header: m.Header, Payload: m.Payload, Signature: m.Signature}
	}
	if m.AllowedAddress != "" {
		out.BaseBuilder = &BaseBuilder{AllowedAddresses: []string{m.AllowedAddress}}
	}
	return out
}

// GetManifest godoc
// @ID          getManifest
// @Summary     Mini-app manifest
// @Tags        Meta
// @Produce     json
// @Success     200  {object}  handlers.Manifest
// @Failure     404  {object}  handlers.ErrorResponse  "PUNKHUNT_PUBLIC_URL not set"
// @Router      /.well-known/farcaster.json [get]
func (h *Handlers) GetManifest(c *gin.Context) {
	if h.d.Manifest.URL == "" {
		fail(c, http.StatusNotFound, ErrCodeManifestNotAvailable, "manifest not configured")
		return
	}
	ok(c, http.StatusOK, BuildManifest(h.d.Manifest))
}
