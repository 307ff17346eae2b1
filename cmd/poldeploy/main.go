// Command poldeploy deploys the Proof-of-Liquidity contracts and resumes
// interrupted deployments from the last completed step.
package main

import (
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(exitCode(err))
	}
}
