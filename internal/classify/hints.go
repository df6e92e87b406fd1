package classify

import "golang.org/x/text/language"

type hintKey string

const (
	hintUpdateEngine     hintKey = "update_engine"
	hintVideoUnavailable hintKey = "video_unavailable"
	hintBotCheck         hintKey = "bot_check"
	hintCookieDatabase   hintKey = "cookie_database"
	hintCookieFallback   hintKey = "cookie_fallback"
	hintRateLimited      hintKey = "rate_limited"
	hintNetwork          hintKey = "network"
	hintPrivate          hintKey = "private"
	hintGeoBlock         hintKey = "geo_block"
	hintAgeGate          hintKey = "age_gate"
	hintNoSpace          hintKey = "no_space"
	hintFFmpegMissing    hintKey = "ffmpeg_missing"
	hintInvalidURL       hintKey = "invalid_url"
	hintRetry            hintKey = "retry"
)

var catalogs = map[language.Tag]map[hintKey]string{
	language.English: {
		hintUpdateEngine:     "yt-dlp is out of date. Update it (pip install --upgrade yt-dlp) and try again.",
		hintVideoUnavailable: "The video is unavailable or was removed. Try another URL.",
		hintBotCheck:         "YouTube requires sign-in. Use --cookies-from-browser chrome, edge or firefox.",
		hintCookieDatabase:   "Could not read the browser cookie database. Close the browser and retry, or pick another browser (for example firefox).",
		hintCookieFallback:   "Retrying without cookies also failed. Close the browser so its cookie database can be copied, or choose another browser.",
		hintRateLimited:      "Rate limited (429). Enable --cookies-from-browser, download fewer items and retry later.",
		hintNetwork:          "Check the network connection and retry.",
		hintPrivate:          "The video is private or removed. You need access or another URL.",
		hintGeoBlock:         "The video is blocked in your region. Use cookies or a proxy from an allowed region.",
		hintAgeGate:          "The video is age restricted. Use --cookies-from-browser with a signed-in browser.",
		hintNoSpace:          "Free up disk space and retry.",
		hintFFmpegMissing:    "Install ffmpeg and ffprobe and add them to PATH.",
		hintInvalidURL:       "The URL is invalid or does not exist.",
		hintRetry:            "Retry with different options or check the log file.",
	},
	language.Vietnamese: {
		hintUpdateEngine:     "yt-dlp cần cập nhật. Chạy: pip install --upgrade yt-dlp",
		hintVideoUnavailable: "Video không khả dụng hoặc đã bị xoá. Thử URL khác.",
		hintBotCheck:         "YouTube yêu cầu xác thực. Dùng --cookies-from-browser chrome/edge/firefox.",
		hintCookieDatabase:   "Không thể truy cập cookie database. Đóng trình duyệt rồi thử lại hoặc chọn trình duyệt khác (ví dụ Firefox).",
		hintCookieFallback:   "Thử lại không dùng cookies cũng thất bại. Đóng trình duyệt hoặc chọn trình duyệt khác.",
		hintRateLimited:      "Rate limit (429). Bật cookies-from-browser, giảm số lượng tải và thử lại sau.",
		hintNetwork:          "Kiểm tra mạng và thử lại.",
		hintPrivate:          "Video riêng tư/đã xoá. Cần quyền hoặc URL khác.",
		hintGeoBlock:         "Video bị chặn theo vùng. Dùng cookies hoặc proxy phù hợp vùng.",
		hintAgeGate:          "Dùng cookies-from-browser để vượt qua age gate.",
		hintNoSpace:          "Giải phóng dung lượng ổ đĩa.",
		hintFFmpegMissing:    "Cài ffmpeg/ffprobe và thêm vào PATH.",
		hintInvalidURL:       "URL không hợp lệ hoặc không tồn tại.",
		hintRetry:            "Thử lại với tuỳ chọn khác hoặc kiểm tra log.",
	},
}

var matcher = language.NewMatcher([]language.Tag{language.English, language.Vietnamese})

func catalogFor(locale string) map[hintKey]string {
	_, idx, _ := matcher.Match(language.Make(locale))
	switch idx {
	case 1:
		return catalogs[language.Vietnamese]
	default:
		return catalogs[language.English]
	}
}

// SupportedLocale reports the locale actually used for a requested one.
func SupportedLocale(locale string) string {
	_, idx, _ := matcher.Match(language.Make(locale))
	if idx == 1 {
		return "vi"
	}
	return "en"
}
