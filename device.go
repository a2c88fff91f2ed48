package snag

import (
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"golang.org/x/term"

	"github.com/charliek/snag/report"
)

// deviceInfo assembles a fresh environment snapshot for one capture. Every
// probe degrades to a coarser runtime fact instead of erroring.
func (e *Engine) deviceInfo() report.DeviceInfo {
	info := report.DeviceInfo{
		UserAgent:        userAgent(),
		Platform:         runtime.GOOS + "/" + runtime.GOARCH,
		Language:         language(),
		ViewportWidth:    e.config.Screenshot.Width,
		ViewportHeight:   e.config.Screenshot.Height,
		DevicePixelRatio: 1,
		Timezone:         timezone(),
		CookiesEnabled:   http.DefaultClient.Jar != nil,
	}

	if hi, err := host.Info(); err == nil && hi.Platform != "" {
		info.Platform = strings.TrimSpace(fmt.Sprintf("%s %s (%s)", hi.Platform, hi.PlatformVersion, hi.KernelArch))
	}

	// Terminal dimensions stand in for the physical screen; headless
	// processes report the render viewport instead.
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		info.ScreenWidth = w
		info.ScreenHeight = h
	} else {
		info.ScreenWidth = info.ViewportWidth
		info.ScreenHeight = info.ViewportHeight
	}

	return info
}

func userAgent() string {
	return fmt.Sprintf("snag/%s %s (%s; %s)", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// language derives a BCP 47-ish tag from the locale environment.
func language() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := os.Getenv(key)
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		if i := strings.IndexByte(v, '.'); i >= 0 {
			v = v[:i]
		}
		return strings.ReplaceAll(v, "_", "-")
	}
	return ""
}

func timezone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		return tz
	}
	zone, offset := time.Now().Zone()
	if zone != "" && zone != "Local" {
		return zone
	}
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("UTC%s%02d:%02d", sign, offset/3600, offset%3600/60)
}
