package imageconv

import "toolbox/internal/services"

var (
	ErrInvalidPath    = services.NewMarker(services.KindInvalidPath, "invalid path")
	ErrNotAFile       = services.NewMarker(services.KindNotAFile, "not a file")
	ErrWrongExtension = services.NewMarker(services.KindWrongExtension, "wrong extension")
	ErrDecode         = services.NewMarker(services.KindDecode, "decode error")
	ErrEncode         = services.NewMarker(services.KindEncode, "encode error")
	ErrIO             = services.NewMarker(services.KindIO, "io error")
)
