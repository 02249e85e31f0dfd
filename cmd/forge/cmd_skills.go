package main

import (
	"fmt"

	"forge/internal/skills"
	"forge/internal/ux"

	"github.com/spf13/cobra"
)

// skillsCmd lists the registered skills
var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "List the skills the planner can choose",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := ux.DefaultStyles()
		t := ux.NewTable("Skills", "Name", "Touches implementation", "Description")
		for _, def := range skills.NewDefaultRegistry().Definitions() {
			touches := "no"
			if def.TouchesImplementation {
				touches = "yes"
			}
			t.AddRow(string(def.Name), touches, def.Description)
		}
		fmt.Fprint(cmd.OutOrStdout(), t.View(s))
		return nil
	},
}
