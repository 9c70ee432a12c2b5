package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

func (cli *commandLine) importRoster(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening roster")
	}
	defer f.Close()

	res, err := cli.rosterSvc.Import(context.Background(), f)
	if err != nil {
		return err
	}

	fmt.Printf("%d students imported, %d rows failed\n", res.Imported, len(res.Failed))
	for _, rowErr := range res.Failed {
		fmt.Printf("  row %d: %s\n", rowErr.Row, rowErr.Error)
	}
	return nil
}
