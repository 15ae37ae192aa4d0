package main

import (
	"fmt"
	"time"

	"estimator/internal/submission"
	"estimator/internal/utils"

	"github.com/urfave/cli/v2"
)

var idsCommand = &cli.Command{
	Name:  "ids",
	Usage: "Generate identifiers for use in seed files and fixtures",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"c"},
			Usage:   "Number of IDs to generate",
			Value:   1,
		},
		&cli.StringFlag{
			Name:    "kind",
			Aliases: []string{"k"},
			Usage:   "nanoid, temp, customer or estimate",
			Value:   "nanoid",
		},
	},
	Action: func(c *cli.Context) error {
		var gen func() string
		switch kind := c.String("kind"); kind {
		case "nanoid":
			gen = utils.NanoID
		case "temp":
			gen = func() string { return utils.TempID(time.Now()) }
		case "customer":
			gen = func() string { return utils.HumanID(submission.CustomerIDPrefix) }
		case "estimate":
			gen = func() string { return utils.HumanID(submission.EstimateIDPrefix) }
		default:
			return fmt.Errorf("unknown id kind %q", kind)
		}

		for range c.Int("count") {
			fmt.Println(gen())
		}
		return nil
	},
}
