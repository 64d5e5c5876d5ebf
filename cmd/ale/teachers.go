package main

import (
	"github.com/ale-nlp/ale/internal/teacher"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(teachersCmd)
}

var teachersCmd = &cobra.Command{
	Use:   "teachers",
	Short: "List the available teacher strategies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names := teacher.Names()
		if humanOutput {
			for _, name := range names {
				outputHuman("%s\n", name)
			}
			return nil
		}
		return outputJSON(TeachersResponse{Teachers: names})
	},
}

// TeachersResponse is the response for the teachers command.
type TeachersResponse struct {
	Teachers []string `json:"teachers"`
}
