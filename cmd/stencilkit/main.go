package main

import (
	"oss.terrastruct.com/util-go/xmain"

	"github.com/stencilkit/stencilkit/skcli"
)

func main() {
	xmain.Main(skcli.Run)
}
