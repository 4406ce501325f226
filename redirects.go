package dnrconverter

// redirectEmpty is the redirect resource used by the deprecated $empty
// modifier.
const redirectEmpty = "nooptext"

// redirectResources maps the names of the redirect resources to the names of
// their files in the web-accessible resources directory.
var redirectResources = map[string]string{
	"1x1-transparent.gif":           "1x1-transparent.gif",
	"2x2-transparent.png":           "2x2-transparent.png",
	"3x2-transparent.png":           "3x2-transparent.png",
	"32x32-transparent.png":         "32x32-transparent.png",
	"amazon-apstag":                 "amazon-apstag.js",
	"ati-smarttag":                  "ati-smarttag.js",
	"click2load.html":               "click2load.html",
	"didomi-loader":                 "didomi-loader.js",
	"fingerprintjs2":                "fingerprintjs2.js",
	"fingerprintjs3":                "fingerprintjs3.js",
	"gemius":                        "gemius.js",
	"google-analytics":              "google-analytics.js",
	"google-analytics-ga":           "google-analytics-ga.js",
	"google-ima3":                   "google-ima3.js",
	"googlesyndication-adsbygoogle": "googlesyndication-adsbygoogle.js",
	"googletagservices-gpt":         "googletagservices-gpt.js",
	"matomo":                        "matomo.js",
	"metrika-yandex-tag":            "metrika-yandex-tag.js",
	"metrika-yandex-watch":          "metrika-yandex-watch.js",
	"naver-wcslog":                  "naver-wcslog.js",
	"noeval":                        "noeval.js",
	"noopcss":                       "noopcss.css",
	"noopframe":                     "noopframe.html",
	"noopjs":                        "noopjs.js",
	"noopjson":                      "noopjson.json",
	"noopmp3-0.1s":                  "noopmp3-0.1s.mp3",
	"noopmp4-1s":                    "noopmp4-1s.mp4",
	"nooptext":                      "nooptext.js",
	"noopvast-2.0":                  "noopvast-2.0.xml",
	"noopvast-3.0":                  "noopvast-3.0.xml",
	"noopvast-4.0":                  "noopvast-4.0.xml",
	"noopvmap-1.0":                  "noopvmap-1.0.xml",
	"prebid-ads":                    "prebid-ads.js",
	"prevent-bab":                   "prevent-bab.js",
	"prevent-bab2":                  "prevent-bab2.js",
	"prevent-fab-3.2.0":             "prevent-fab-3.2.0.js",
	"prevent-popads-net":            "prevent-popads-net.js",
	"scorecardresearch-beacon":      "scorecardresearch-beacon.js",
}

// redirectPath returns the path of the redirect resource with the specified
// name under resourcesPath.  ok is false if the resource is unknown.
func redirectPath(resourcesPath, name string) (path string, ok bool) {
	file, ok := redirectResources[name]
	if !ok {
		return "", false
	}

	return resourcesPath + "/" + file, true
}
