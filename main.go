// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/felisloader/felis/cmd/felis"

func main() {
	cmd.Execute()
}
