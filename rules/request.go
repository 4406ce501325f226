package rules

// RequestType is the request types enumeration
type RequestType uint32

const (
	// TypeDocument (main frame)
	TypeDocument RequestType = 1 << iota
	// TypeSubdocument (iframe) $subdocument
	TypeSubdocument
	// TypeScript (javascript, etc) $script
	TypeScript
	// TypeStylesheet (css) $stylesheet
	TypeStylesheet
	// TypeObject (flash, etc) $object
	TypeObject
	// TypeImage (any image) $image
	TypeImage
	// TypeXmlhttprequest (ajax/fetch) $xmlhttprequest
	TypeXmlhttprequest
	// TypeMedia (video/music) $media
	TypeMedia
	// TypeFont (any custom font) $font
	TypeFont
	// TypeWebsocket (a websocket connection) $websocket
	TypeWebsocket
	// TypePing (navigator.sendBeacon() or ping attribute on links) $ping
	TypePing
	// TypeOther - any other request type
	TypeOther
)

// requestTypeNames maps modifier names to request types.  $document is not
// here since it also enables an option.
var requestTypeNames = map[string]RequestType{
	"subdocument":    TypeSubdocument,
	"script":         TypeScript,
	"stylesheet":     TypeStylesheet,
	"object":         TypeObject,
	"image":          TypeImage,
	"xmlhttprequest": TypeXmlhttprequest,
	"media":          TypeMedia,
	"font":           TypeFont,
	"websocket":      TypeWebsocket,
	"ping":           TypePing,
	"other":          TypeOther,
}

// allRequestTypes is the ordered list of all request types.
var allRequestTypes = []RequestType{
	TypeDocument,
	TypeSubdocument,
	TypeScript,
	TypeStylesheet,
	TypeObject,
	TypeImage,
	TypeXmlhttprequest,
	TypeMedia,
	TypeFont,
	TypeWebsocket,
	TypePing,
	TypeOther,
}

// Types returns the single-flag request types enabled in t in a stable order.
func (t RequestType) Types() (types []RequestType) {
	for _, rt := range allRequestTypes {
		if t&rt == rt {
			types = append(types, rt)
		}
	}

	return types
}
