// Command upload sends files or whole folders to an archived document using
// the chunked upload API. Folder paths are sent along, so the server can
// classify files by their category folder.
//
//	upload -url http://localhost:8080 -token $TOKEN -doc 5f0c... Folder/
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dmitrijs2005/archivia/internal/netx"
)

func main() {

	var baseURL, token, documentID, category string

	flag.StringVar(&baseURL, "url", "http://localhost:8080", "archive server base URL")
	flag.StringVar(&token, "token", os.Getenv("ARCHIVIA_TOKEN"), "API access token")
	flag.StringVar(&documentID, "doc", "", "target document id")
	flag.StringVar(&category, "category", "", "category for every file (default: classified by the server)")
	flag.Parse()

	if documentID == "" || token == "" || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := netx.NewClient(baseURL, token, nil)

	failed := 0
	for _, root := range flag.Args() {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				return nil
			}

			folder := ""
			if rel, err := filepath.Rel(filepath.Dir(root), filepath.Dir(path)); err == nil && rel != "." {
				folder = filepath.ToSlash(rel)
			}

			res, err := client.UploadFile(ctx, documentID, path, netx.UploadOptions{Folder: folder, Category: category})
			if err != nil {
				failed++
				log.Printf("%s: %v", path, err)
				return ctx.Err()
			}

			state := "uploaded"
			if res.Existing {
				state = "already stored"
			}
			fmt.Printf("%s\t%s\t%s\t#%d\t%s\n", path, res.Category, state, res.SequenceNumber, res.StorageKey)
			return nil
		})
		if err != nil {
			log.Printf("%s: %v", root, err)
			failed++
			break
		}
	}

	if failed > 0 {
		os.Exit(1)
	}

}
