// Command caffe serves a demo middleware pipeline over HTTP, WebSocket or
// stdio.
package main

import "github.com/felixgeelhaar/caffe/cmd/caffe/app"

func main() {
	app.NewApp().Run()
}
