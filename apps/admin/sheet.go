package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"github.com/trezcool/pogil/core/render"
	"github.com/trezcool/pogil/core/sheet"
)

// readSheet reads a sheet from path, or from the CLI input when path is empty.
func (cli *commandLine) readSheet(path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "" {
		b, err = io.ReadAll(cli.in)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", errors.Wrap(err, "reading sheet")
	}
	return string(b), nil
}

func (cli *commandLine) parseCmd(args []string) error {
	fs := cli.newFlagSet("parse")
	file := fs.String("file", "", "sheet file (default: stdin)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	src, err := cli.readSheet(*file)
	if err != nil {
		return err
	}
	blocks := sheet.NewParser(cli.log).ParseText(src)

	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(blocks)
}

func (cli *commandLine) renderCmd(args []string) error {
	fs := cli.newFlagSet("render")
	file := fs.String("file", "", "sheet file (default: stdin)")
	mode := fs.String("mode", string(render.Preview), "render mode: preview, run or edit")
	editable := fs.Bool("editable", false, "render editable fields")
	sections := fs.Bool("sheet", false, "wrap question groups in their sections")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	m := render.Mode(*mode)
	switch m {
	case render.Preview, render.Run, render.Edit:
	default:
		return errors.Errorf("unknown render mode %q", *mode)
	}

	src, err := cli.readSheet(*file)
	if err != nil {
		return err
	}
	blocks := sheet.NewParser(cli.log).ParseText(src)

	opts := render.Options{Mode: m, Editable: *editable, IsActive: true}
	var nodes []*html.Node
	if *sections {
		nodes = render.RenderSheet(blocks, opts)
	} else {
		nodes = render.Render(blocks, opts)
	}
	out, err := render.ToHTML([]*html.Node{render.Document(nodes)})
	if err != nil {
		return errors.Wrap(err, "rendering sheet")
	}
	_, err = io.WriteString(cli.out, out+"\n")
	return err
}
