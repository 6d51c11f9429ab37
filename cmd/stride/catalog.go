package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/hperssn/stride/internal/catalog"
)

type CatalogCmd struct {
	Calories int    `help:"Calorie target" required:""`
	Limit    int    `help:"Maximum suggestions (0 = all)" default:"5"`
	File     string `help:"Catalog YAML file (overrides CATALOG_PATH)" type:"path"`
}

func (c *CatalogCmd) Run(cli *CLI) error {
	path := cli.cfg.CatalogPath
	if c.File != "" {
		path = c.File
	}

	exercises, err := catalog.Load(path)
	if err != nil {
		return err
	}

	suggestions := exercises.Match(c.Calories, c.Limit)
	if len(suggestions) == 0 {
		fmt.Println("No exercise reaches that target in time.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMINUTES\tCALORIES")
	for _, s := range suggestions {
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%d\n",
			s.Exercise.ID, s.Exercise.Name, float64(s.TargetSeconds)/60, s.TargetEnergyUnits)
	}
	return w.Flush()
}
