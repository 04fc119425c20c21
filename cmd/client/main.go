package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/loveuconvert/imageconvert/internal/collector"
)

func main() {
	server := flag.String("server", "http://localhost:3000", "converter server base URL")
	format := flag.String("format", "png", "target image format")
	out := flag.String("out", "", "output file path (defaults to converted.<format>)")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Println("Usage: client [-server URL] [-format fmt] [-out path] file-or-url ...")
		os.Exit(1)
	}

	c := collector.New(*server)

	for _, arg := range flag.Args() {
		var err error
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			err = c.AddURL(arg)
		} else {
			err = c.Add(arg)
		}
		if err != nil {
			log.Fatalf("cannot add %s: %v", arg, err)
		}
	}

	ctx := context.Background()

	items := c.Items()
	log.Printf("submitting %d item(s) for conversion to %s", len(items), *format)
	if err := c.Submit(ctx, *format); err != nil {
		log.Fatalf("conversion failed: %v", err)
	}

	dst := *out
	if dst == "" {
		dst = "converted." + *format
	}

	if err := c.Download(ctx, dst); err != nil {
		log.Fatalf("download failed: %v", err)
	}
	log.Printf("saved converted result to %s", dst)
}
