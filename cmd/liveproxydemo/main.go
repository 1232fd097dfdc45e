// Command liveproxydemo opens a sqlstore-backed Proxy over a path and
// relays its events to websocket clients through wsrelay, giving the
// core's public surface a real running example. Grounded on the
// teacher's cmd/finewiki/main.go / blueprints/*/cmd entrypoint style: a
// minimal main that delegates straight into cli.Execute.
package main

import (
	"context"
	"os"

	"github.com/go-mizu/liveproxy/cmd/liveproxydemo/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
