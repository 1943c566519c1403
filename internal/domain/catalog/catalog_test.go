package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *InstallableFonts {
	t.Helper()
	c := &InstallableFonts{
		Response: ResponseSuccess,
		Foundries: []Foundry{{
			UniqueID: "awesomefonts",
			Name:     MultiLanguageText{"en": "Awesome Fonts"},
			Licenses: []LicenseDefinition{{
				Keyword: "awesomeLicense",
				Name:    MultiLanguageText{"en": "Awesome License"},
				URL:     "https://awesomefonts.com/license",
			}},
			Families: []Family{{
				UniqueID: "awesomefonts-awesomesans",
				Name:     MultiLanguageText{"en": "Awesome Sans"},
				Versions: []Version{{Number: "1.0"}, {Number: "2.0"}},
				Fonts: []Font{
					{
						UniqueID:       "awesomefonts-awesomesans-regular",
						Name:           MultiLanguageText{"en": "Regular"},
						PostScriptName: "AwesomeSans-Regular",
						Format:         "otf",
						Purpose:        PurposeDesktop,
						UsedLicenses:   []LicenseUsage{{Keyword: "awesomeLicense"}},
					},
					{
						UniqueID:       "awesomefonts-awesomesans-bold",
						Name:           MultiLanguageText{"en": "Bold"},
						PostScriptName: "AwesomeSans-Bold",
						Format:         "otf",
						Purpose:        PurposeDesktop,
						UsedLicenses:   []LicenseUsage{{Keyword: "awesomeLicense"}},
						Versions:       []Version{{Number: "2.1"}},
					},
				},
			}},
		}},
	}
	c.Link()
	return c
}

func TestFontInheritsFamilyVersions(t *testing.T) {
	c := testCatalog(t)

	regular := c.Font("awesomefonts-awesomesans-regular")
	require.NotNil(t, regular)

	versions := regular.GetVersions()
	require.Len(t, versions, 2)
	assert.Equal(t, "1.0", versions[0].Number)
	assert.Equal(t, "2.0", versions[1].Number)
	assert.Equal(t, "2.0", regular.LatestVersion().Number)
}

func TestFontCombinesOwnAndFamilyVersions(t *testing.T) {
	c := testCatalog(t)

	bold := c.Font("awesomefonts-awesomesans-bold")
	require.NotNil(t, bold)

	versions := bold.GetVersions()
	require.Len(t, versions, 3)
	assert.Equal(t, "2.1", versions[len(versions)-1].Number)
	assert.Equal(t, "2.1", bold.LatestVersion().Number)
}

func TestFontOutdated(t *testing.T) {
	c := testCatalog(t)
	regular := c.Font("awesomefonts-awesomesans-regular")

	assert.True(t, regular.IsOutdated("1.0"))
	assert.False(t, regular.IsOutdated("2.0"))
}

func TestFontFilename(t *testing.T) {
	f := &Font{PostScriptName: "AwesomeSans-Regular", Format: "otf"}
	assert.Equal(t, "AwesomeSans-Regular_2.0.otf", f.Filename("2.0"))

	f.Format = ""
	assert.Equal(t, "AwesomeSans-Regular_2.0", f.Filename("2.0"))
}

func TestFontExpiry(t *testing.T) {
	installedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	perpetual := &Font{}
	assert.True(t, perpetual.ExpiresAt(installedAt).IsZero())

	fixed := &Font{Expiry: installedAt.Add(24 * time.Hour).Unix()}
	assert.Equal(t, installedAt.Add(24*time.Hour).Unix(), fixed.ExpiresAt(installedAt).Unix())

	trial := &Font{ExpiryDuration: 3600}
	assert.Equal(t, installedAt.Add(time.Hour), trial.ExpiresAt(installedAt))
}

func TestCatalogLookups(t *testing.T) {
	c := testCatalog(t)

	assert.Equal(t, 2, c.FontCount())
	assert.Nil(t, c.Font("missing"))

	bold := c.Font("awesomefonts-awesomesans-bold")
	require.NotNil(t, bold)
	require.NotNil(t, bold.Family())
	assert.Equal(t, "awesomefonts-awesomesans", bold.Family().UniqueID)
	require.NotNil(t, bold.Family().Foundry())

	license := bold.Family().Foundry().License("awesomeLicense")
	require.NotNil(t, license)
	assert.Equal(t, "https://awesomefonts.com/license", license.URL)
	assert.Nil(t, bold.Family().Foundry().License("other"))
}

func TestEndpointAllowsCommercialApp(t *testing.T) {
	e := &Endpoint{AllowedCommercialApps: []string{"world.type.app"}}
	assert.True(t, e.AllowsCommercialApp("world.type.app"))
	assert.False(t, e.AllowsCommercialApp("com.other.app"))

	wildcard := &Endpoint{AllowedCommercialApps: []string{"*"}}
	assert.True(t, wildcard.AllowsCommercialApp("com.other.app"))

	none := &Endpoint{}
	assert.False(t, none.AllowsCommercialApp("world.type.app"))
}

func TestMultiLanguageText(t *testing.T) {
	text := MultiLanguageText{"en": "Hello", "de": "Hallo"}

	assert.Equal(t, "Hallo", text.Text([]string{"de"}))
	assert.Equal(t, "Hallo", text.Text([]string{"de-DE"}))
	assert.Equal(t, "Hello", text.Text([]string{"fr"}))
	assert.Equal(t, "Hello", text.Text(nil))

	noEnglish := MultiLanguageText{"de": "Hallo"}
	assert.Equal(t, "Hallo", noEnglish.Text([]string{"fr"}))

	assert.True(t, MultiLanguageText{}.Empty())
	assert.True(t, MultiLanguageText{"en": ""}.Empty())
	assert.False(t, text.Empty())
}

func TestParseRoot(t *testing.T) {
	data := []byte(`{
		"version": "0.4.3",
		"endpoint": {
			"canonicalURL": "https://awesomefonts.com/api/",
			"adminEmail": "admin@awesomefonts.com",
			"publisherType": "retail",
			"supportedCommands": ["endpoint", "installableFonts", "installFonts", "uninstallFonts"],
			"name": {"en": "Awesome Fonts"}
		}
	}`)

	root, err := ParseRoot(data)
	require.NoError(t, err)
	assert.Equal(t, "0.4.3", root.Version)
	require.NotNil(t, root.Endpoint)
	assert.Equal(t, "Awesome Fonts", root.Endpoint.Name.Text(nil))
}

func TestParseRootRejectsInvalid(t *testing.T) {
	_, err := ParseRoot([]byte(`{"endpoint": {"canonicalURL": "not-a-url"}}`))
	assert.Error(t, err)

	_, err = ParseRoot([]byte(`not json`))
	assert.Error(t, err)
}
