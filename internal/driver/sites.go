package driver

import "github.com/nmhfix/nmhfix/internal/scan"

// Site is a code location found by signature. Offset is added to the match
// to get the address the driver acts on.
type Site struct {
	Name      string
	Signature scan.Signature
	Offset    uintptr
}

var (
	introSkipSite = Site{
		Name:      "Skip Intro",
		Signature: scan.MustParse("C7 ?? ?? 00 00 00 00 C6 ?? ?? 00 C6 ?? ?? ?? ?? ?? 00 C7 ?? ?? ?? ?? ?? ?? ?? ?? ??"),
		Offset:    0xa,
	}
	resolutionSite = Site{
		Name:      "Current Resolution",
		Signature: scan.MustParse("8B ?? ?? ?? ?? ?? 6A ?? E8 ?? ?? ?? ?? A1 ?? ?? ?? ?? C7 ?? ?? ?? ?? ?? ??"),
	}
	viewportSite = Site{
		Name:      "Viewport",
		Signature: scan.MustParse("66 0F ?? ?? 0F ?? ?? 5F ?? A3 ?? ?? ?? ??"),
	}
	occlusionAspectSite = Site{
		Name:      "Occlusion Aspect Ratio",
		Signature: scan.MustParse("F3 0F ?? ?? F3 0F ?? ?? ?? ?? ?? ?? 85 ?? 0F 84 ?? ?? ?? ?? C7 ?? ?? ?? 80 02 00 00"),
		Offset:    0x4,
	}
	shadowAspectSite = Site{
		Name:      "Shadow Aspect Ratio",
		Signature: scan.MustParse("0F 57 ?? ?? ?? ?? ?? 0F 28 ?? F3 0F ?? ?? 0F 28 ?? C7 05 ?? ?? ?? ?? 00 00 00 00"),
	}
	movieAspectSite = Site{
		Name:      "HUD: Movies: Aspect Ratio",
		Signature: scan.MustParse("C7 44 ?? ?? ?? ?? ?? ?? 89 ?? ?? ?? F3 0F ?? ?? ?? ?? ?? ?? F3 0F ?? ?? F3 0F ?? ?? F3 0F ?? ?? ?? ??"),
	}
	movieSizeSite = Site{
		Name:      "HUD: Movies: Size",
		Signature: scan.MustParse("0F ?? ?? ?? 83 ?? ?? ?? 83 ?? ?? ?? 83 ?? ?? ?? 8B ?? E8 ?? ?? ?? ??"),
		Offset:    0x4,
	}
	fovSite = Site{
		Name:      "FOV",
		Signature: scan.MustParse("F3 0F 11 ?? ?? F3 0F 11 ?? ?? ?? ?? ?? F3 0F 59 ?? ?? ?? ?? ?? 56"),
	}

	// The HUD sites are calls into the function that is hooked, or an
	// instruction referencing the variable that is written.
	setViewportSite = Site{
		Name:      "HUD: SetViewport",
		Signature: scan.MustParse("C7 ?? ?? 00 00 F0 43 E8 ?? ?? ?? ??"),
	}
	hudBackgroundSite = Site{
		Name:      "HUD: Backgrounds",
		Signature: scan.MustParse("F3 0F ?? ?? ?? ?? ?? ?? 0F 57 ?? F7 ?? 03 ?? C1 ?? ?? 8B ??"),
	}
	drawBoxSite = Site{
		Name:      "HUD: DrawBox",
		Signature: scan.MustParse("0F 5B ?? E8 ?? ?? ?? ?? C6 ?? ?? ?? ?? ?? 00 C3"),
	}
	mtxOrthoSite = Site{
		Name:      "HUD: MTXOrtho",
		Signature: scan.MustParse("0F 57 ?? F3 0F ?? ?? ?? F3 0F 10 ?? ?? ?? ?? ?? F3 0F ?? ?? 0F 28 ?? 0F 28 ??"),
		Offset:    0x3,
	}
)

// Sites returns every signature the drivers scan for.
func Sites() []Site {
	return []Site{
		introSkipSite,
		resolutionSite,
		viewportSite,
		occlusionAspectSite,
		shadowAspectSite,
		movieAspectSite,
		movieSizeSite,
		fovSite,
		setViewportSite,
		hudBackgroundSite,
		drawBoxSite,
		mtxOrthoSite,
	}
}
