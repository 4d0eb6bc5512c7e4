package pomp

import "github.com/op/go-logging"

// packageLogger is used by Protocol when constructed with a nil
// *logging.Logger, so the core stays usable without a transport wiring
// up its own logger first.
var packageLogger = logging.MustGetLogger("pomp")
