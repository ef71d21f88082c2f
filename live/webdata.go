// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package live

import (
	"net/http"

	"github.com/gobuffalo/packr"
)

// WebdataBox holds the monitor client page.
var WebdataBox = packr.NewBox("webdata")

// WebdataHandler serves the client page under prefix.
func WebdataHandler(prefix string) http.Handler {
	return http.StripPrefix(prefix, http.FileServer(WebdataBox))
}
