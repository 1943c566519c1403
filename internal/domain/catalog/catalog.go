package catalog

import (
	"fmt"
	"sort"
	"time"

	"github.com/typeworld/typeworld-go/internal/shared/version"
)

// Font lifecycle status values.
const (
	StatusPrerelease = "prerelease"
	StatusTrial      = "trial"
	StatusStable     = "stable"
)

// Font purpose values.
const (
	PurposeDesktop = "desktop"
	PurposeWeb     = "web"
	PurposeApp     = "app"
)

// Designer describes a type designer referenced by families or fonts.
type Designer struct {
	Keyword     string            `json:"keyword" validate:"required"`
	Name        MultiLanguageText `json:"name" validate:"required"`
	WebsiteURL  string            `json:"websiteURL,omitempty"`
	Description MultiLanguageText `json:"description,omitempty"`
}

// LicenseDefinition is a font license a foundry publishes once and fonts
// reference by keyword.
type LicenseDefinition struct {
	Keyword string            `json:"keyword" validate:"required"`
	Name    MultiLanguageText `json:"name" validate:"required"`
	URL     string            `json:"URL" validate:"required,url"`
}

// LicenseUsage ties a font to one of its foundry's license definitions.
type LicenseUsage struct {
	Keyword              string            `json:"keyword" validate:"required"`
	SeatsAllowed         int               `json:"seatsAllowed,omitempty"`
	SeatsInstalled       int               `json:"seatsInstalled,omitempty"`
	AllowanceDescription MultiLanguageText `json:"allowanceDescription,omitempty"`
	UpgradeURL           string            `json:"upgradeURL,omitempty"`
	DateAddedForUser     string            `json:"dateAddedForUser,omitempty"`
}

// Version is one released version of a font or an entire family.
type Version struct {
	Number      string            `json:"number" validate:"required"`
	Description MultiLanguageText `json:"description,omitempty"`
	ReleaseDate string            `json:"releaseDate,omitempty"`
}

// Font is a single installable font.
type Font struct {
	UniqueID           string              `json:"uniqueID" validate:"required"`
	Name               MultiLanguageText   `json:"name" validate:"required"`
	PostScriptName     string              `json:"postScriptName" validate:"required"`
	Format             string              `json:"format,omitempty"`
	Purpose            string              `json:"purpose" validate:"required,oneof=desktop web app"`
	Status             string              `json:"status,omitempty"`
	Protected          bool                `json:"protected,omitempty"`
	Free               bool                `json:"free,omitempty"`
	Expiry             int64               `json:"expiry,omitempty"`         // unix seconds
	ExpiryDuration     int64               `json:"expiryDuration,omitempty"` // seconds after install
	DesignerKeywords   []string            `json:"designerKeywords,omitempty"`
	UsedLicenses       []LicenseUsage      `json:"usedLicenses" validate:"required,min=1"`
	Versions           []Version           `json:"versions,omitempty"`
	LanguageSupport    map[string][]string `json:"languageSupport,omitempty"`
	Features           []string            `json:"features,omitempty"`
	PDFURL             string              `json:"pdfURL,omitempty"`
	BillboardURLs      []string            `json:"billboardURLs,omitempty"`
	DateFirstPublished string              `json:"dateFirstPublished,omitempty"`

	parent *Family
}

// Filename is the file name a given version of this font is saved under,
// before the per-subscription ID prefix is applied.
func (f *Font) Filename(versionNumber string) string {
	if f.Format != "" {
		return fmt.Sprintf("%s_%s.%s", f.PostScriptName, versionNumber, f.Format)
	}
	return fmt.Sprintf("%s_%s", f.PostScriptName, versionNumber)
}

// Family returns the family this font belongs to, once the catalog has
// been linked via InstallableFonts.Link.
func (f *Font) Family() *Family { return f.parent }

// GetVersions returns the font's own versions combined with its family's,
// sorted ascending by version number. Every font reachable through a linked
// catalog has at least one.
func (f *Font) GetVersions() []Version {
	var versions []Version
	if f.parent != nil {
		versions = append(versions, f.parent.Versions...)
	}
	versions = append(versions, f.Versions...)
	sort.SliceStable(versions, func(i, j int) bool {
		return version.Compare(versions[i].Number, versions[j].Number) < 0
	})
	return versions
}

// LatestVersion returns the highest version, or nil for a font with no
// versions anywhere.
func (f *Font) LatestVersion() *Version {
	versions := f.GetVersions()
	if len(versions) == 0 {
		return nil
	}
	return &versions[len(versions)-1]
}

// IsOutdated reports whether installedVersion lags behind the latest
// published version.
func (f *Font) IsOutdated(installedVersion string) bool {
	latest := f.LatestVersion()
	return latest != nil && version.Compare(installedVersion, latest.Number) < 0
}

// ExpiresAt returns the absolute expiry time of an installation made at
// installedAt, or zero time when the font does not expire.
func (f *Font) ExpiresAt(installedAt time.Time) time.Time {
	if f.Expiry > 0 {
		return time.Unix(f.Expiry, 0)
	}
	if f.ExpiryDuration > 0 {
		return installedAt.Add(time.Duration(f.ExpiryDuration) * time.Second)
	}
	return time.Time{}
}

// Family groups fonts that share a design and, usually, versions.
type Family struct {
	UniqueID           string            `json:"uniqueID" validate:"required"`
	Name               MultiLanguageText `json:"name" validate:"required"`
	Description        MultiLanguageText `json:"description,omitempty"`
	DesignerKeywords   []string          `json:"designerKeywords,omitempty"`
	SourceURL          string            `json:"sourceURL,omitempty"`
	IssueTrackerURL    string            `json:"issueTrackerURL,omitempty"`
	GalleryURL         string            `json:"galleryURL,omitempty"`
	InUseURL           string            `json:"inUseURL,omitempty"`
	Versions           []Version         `json:"versions,omitempty"`
	Fonts              []Font            `json:"fonts" validate:"required,min=1,dive"`
	DateFirstPublished string            `json:"dateFirstPublished,omitempty"`

	parent *Foundry
}

// Foundry returns the foundry this family belongs to after linking.
func (fam *Family) Foundry() *Foundry { return fam.parent }

// Foundry is a publisher of font families.
type Foundry struct {
	UniqueID    string              `json:"uniqueID" validate:"required"`
	Name        MultiLanguageText   `json:"name" validate:"required"`
	Description MultiLanguageText   `json:"description,omitempty"`
	Email       string              `json:"email,omitempty"`
	WebsiteURL  string              `json:"websiteURL,omitempty"`
	Telephone   string              `json:"telephone,omitempty"`
	Styling     map[string]any      `json:"styling,omitempty"`
	Licenses    []LicenseDefinition `json:"licenses" validate:"required,min=1,dive"`
	Families    []Family            `json:"families" validate:"required,min=1,dive"`
}

// License resolves one of the foundry's license definitions by keyword.
func (fo *Foundry) License(keyword string) *LicenseDefinition {
	for i := range fo.Licenses {
		if fo.Licenses[i].Keyword == keyword {
			return &fo.Licenses[i]
		}
	}
	return nil
}
