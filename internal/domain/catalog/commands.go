package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Response values shared by the command payloads.
const (
	ResponseSuccess                      = "success"
	ResponseError                        = "error"
	ResponseNoFontsAvailable             = "noFontsAvailable"
	ResponseInsufficientPermission       = "insufficientPermission"
	ResponseTemporarilyUnavailable       = "temporarilyUnavailable"
	ResponseLoginRequired                = "loginRequired"
	ResponseRevealedUserIdentityRequired = "revealedUserIdentityRequired"
	ResponseSeatAllowanceReached         = "seatAllowanceReached"
	ResponseTermsOfServiceNotAccepted    = "termsOfServiceNotAccepted"
	ResponseUnknownFont                  = "unknownFont"
	ResponseUnknownInstallation          = "unknownInstallation"
)

// Publisher type values for Endpoint.PublisherType.
const (
	PublisherFree   = "free"
	PublisherRetail = "retail"
	PublisherCustom = "custom"
)

var validate = validator.New()

// Root is the outermost object a publisher endpoint answers with. Exactly
// the commands that were requested are present.
type Root struct {
	Version          string            `json:"version" validate:"required"`
	Endpoint         *Endpoint         `json:"endpoint,omitempty"`
	InstallableFonts *InstallableFonts `json:"installableFonts,omitempty"`
	InstallFonts     *InstallFonts     `json:"installFonts,omitempty"`
	UninstallFonts   *UninstallFonts   `json:"uninstallFonts,omitempty"`
}

// ParseRoot decodes and validates a publisher endpoint response.
func ParseRoot(data []byte) (*Root, error) {
	var root Root
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("malformed endpoint response: %w", err)
	}
	if err := validate.Struct(&root); err != nil {
		return nil, fmt.Errorf("invalid endpoint response: %w", err)
	}
	if root.InstallableFonts != nil {
		root.InstallableFonts.Link()
	}
	return &root, nil
}

// Endpoint carries the publisher's self-description. It is cached per
// subscription and refreshed on every update.
type Endpoint struct {
	CanonicalURL                string            `json:"canonicalURL" validate:"required,url"`
	AdminEmail                  string            `json:"adminEmail" validate:"required,email"`
	LicenseIdentifier           string            `json:"licenseIdentifier,omitempty"`
	PublisherType               string            `json:"publisherType" validate:"required,oneof=free retail custom"`
	SupportedCommands           []string          `json:"supportedCommands" validate:"required,min=1"`
	Name                        MultiLanguageText `json:"name" validate:"required"`
	Public                      bool              `json:"public"`
	SendsLiveNotifications      bool              `json:"sendsLiveNotifications,omitempty"`
	AllowedCommercialApps       []string          `json:"allowedCommercialApps,omitempty"`
	LogoURL                     string            `json:"logoURL,omitempty"`
	WebsiteURL                  string            `json:"websiteURL,omitempty"`
	BackgroundColor             string            `json:"backgroundColor,omitempty"`
	PrivacyPolicyURL            string            `json:"privacyPolicyURL,omitempty"`
	TermsOfServiceURL           string            `json:"termsOfServiceURL,omitempty"`
	LoginURL                    string            `json:"loginURL,omitempty"`
	PublicSubscriptionInviteURL string            `json:"publicSubscriptionInviteURL,omitempty"`
}

// AllowsCommercialApp reports whether the given app may use this endpoint
// commercially. A single "*" entry allows every app.
func (e *Endpoint) AllowsCommercialApp(appID string) bool {
	for _, allowed := range e.AllowedCommercialApps {
		if allowed == "*" || allowed == appID {
			return true
		}
	}
	return false
}

// InstallableFonts is the subscription's content: the fonts the current
// user may install, grouped by foundry and family.
type InstallableFonts struct {
	Response     string            `json:"response" validate:"required"`
	ErrorMessage MultiLanguageText `json:"errorMessage,omitempty"`

	Name      MultiLanguageText `json:"name,omitempty"`
	Designers []Designer        `json:"designers,omitempty"`
	Foundries []Foundry         `json:"foundries,omitempty"`

	UserName                    MultiLanguageText `json:"userName,omitempty"`
	UserEmail                   string            `json:"userEmail,omitempty"`
	UserIsVerified              bool              `json:"userIsVerified,omitempty"`
	PrefersRevealedUserIdentity bool              `json:"prefersRevealedUserIdentity,omitempty"`
}

// Link sets the parent pointers that let a font find its family versions
// and a family its foundry. Must be called after decoding.
func (c *InstallableFonts) Link() {
	for fi := range c.Foundries {
		foundry := &c.Foundries[fi]
		for mi := range foundry.Families {
			family := &foundry.Families[mi]
			family.parent = foundry
			for ni := range family.Fonts {
				family.Fonts[ni].parent = family
			}
		}
	}
}

// EachFont calls fn for every font in the catalog until fn returns false.
func (c *InstallableFonts) EachFont(fn func(*Font) bool) {
	for fi := range c.Foundries {
		for mi := range c.Foundries[fi].Families {
			family := &c.Foundries[fi].Families[mi]
			for ni := range family.Fonts {
				if !fn(&family.Fonts[ni]) {
					return
				}
			}
		}
	}
}

// Font resolves a font by its uniqueID.
func (c *InstallableFonts) Font(uniqueID string) *Font {
	var found *Font
	c.EachFont(func(f *Font) bool {
		if f.UniqueID == uniqueID {
			found = f
			return false
		}
		return true
	})
	return found
}

// FontCount returns the number of fonts in the catalog.
func (c *InstallableFonts) FontCount() int {
	n := 0
	c.EachFont(func(*Font) bool { n++; return true })
	return n
}

// InstallFontAsset is one requested font install: either the font data or
// a per-font error.
type InstallFontAsset struct {
	UniqueID     string            `json:"uniqueID" validate:"required"`
	Version      string            `json:"version,omitempty"`
	Response     string            `json:"response" validate:"required"`
	ErrorMessage MultiLanguageText `json:"errorMessage,omitempty"`
	MimeType     string            `json:"mimeType,omitempty"`
	Encoding     string            `json:"encoding,omitempty"` // "base64" when Data is set
	Data         string            `json:"data,omitempty"`
	DataURL      string            `json:"dataURL,omitempty"`
}

// InstallFonts answers an installFonts command, one asset per requested
// font.
type InstallFonts struct {
	Response     string             `json:"response" validate:"required"`
	ErrorMessage MultiLanguageText  `json:"errorMessage,omitempty"`
	Assets       []InstallFontAsset `json:"assets,omitempty"`
}

// Asset resolves the asset for a font uniqueID.
func (c *InstallFonts) Asset(uniqueID string) *InstallFontAsset {
	for i := range c.Assets {
		if c.Assets[i].UniqueID == uniqueID {
			return &c.Assets[i]
		}
	}
	return nil
}

// UninstallFontAsset acknowledges one seat release.
type UninstallFontAsset struct {
	UniqueID     string            `json:"uniqueID" validate:"required"`
	Response     string            `json:"response" validate:"required"`
	ErrorMessage MultiLanguageText `json:"errorMessage,omitempty"`
}

// UninstallFonts answers an uninstallFonts command.
type UninstallFonts struct {
	Response     string               `json:"response" validate:"required"`
	ErrorMessage MultiLanguageText    `json:"errorMessage,omitempty"`
	Assets       []UninstallFontAsset `json:"assets,omitempty"`
}

// Asset resolves the asset for a font uniqueID.
func (c *UninstallFonts) Asset(uniqueID string) *UninstallFontAsset {
	for i := range c.Assets {
		if c.Assets[i].UniqueID == uniqueID {
			return &c.Assets[i]
		}
	}
	return nil
}
