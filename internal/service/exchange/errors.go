package exchange

import "errors"

var ErrSymbolNotFound = errors.New("symbol not found")
