package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/dipscreener/internal/scoringparams"
	"github.com/wonny/dipscreener/pkg/config"
)

// paramsCmd represents the params command
var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Manage the scoring parameter file",
	Long: `Shows, validates, resets or replaces the scoring parameter file
(PARAMS_FILE, default config/scoring_parameters.yaml).

Subcommands:
  show              - print the current parameters and their hash
  validate [file]   - check a parameter file (default: the current one)
  reset             - overwrite the current file with the documented defaults
  save <file>       - validate a file and make it the current parameters

Example:
  dipscreener params show
  dipscreener params validate experiments/aggressive.yaml
  dipscreener params save experiments/aggressive.yaml`,
}

var (
	paramsShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the current parameters",
		RunE:  runParamsShow,
	}

	paramsValidateCmd = &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a parameter file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runParamsValidate,
	}

	paramsResetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Reset the current parameters to the defaults",
		RunE:  runParamsReset,
	}

	paramsSaveCmd = &cobra.Command{
		Use:   "save <file>",
		Short: "Make a validated file the current parameters",
		Args:  cobra.ExactArgs(1),
		RunE:  runParamsSave,
	}
)

func init() {
	rootCmd.AddCommand(paramsCmd)
	paramsCmd.AddCommand(paramsShowCmd)
	paramsCmd.AddCommand(paramsValidateCmd)
	paramsCmd.AddCommand(paramsResetCmd)
	paramsCmd.AddCommand(paramsSaveCmd)
}

func paramsFile() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return cfg.Pipeline.ParamsFile, nil
}

func runParamsShow(cmd *cobra.Command, args []string) error {
	path, err := paramsFile()
	if err != nil {
		return err
	}

	p, fromFile, err := scoringparams.LoadOrDefault(path)
	if err != nil {
		return err
	}
	if !fromFile {
		PrintInfo(fmt.Sprintf("%s not found; showing the defaults", path))
	}

	data, err := scoringparams.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	hash, err := scoringparams.Hash(p)
	if err != nil {
		return fmt.Errorf("hash params: %w", err)
	}

	fmt.Printf("# %s\n# hash %s\n", path, scoringparams.ShortHash(hash))
	fmt.Print(string(data))
	return nil
}

func runParamsValidate(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		var err error
		if path, err = paramsFile(); err != nil {
			return err
		}
	}

	p, _, err := scoringparams.Load(path)
	if err != nil {
		return err
	}

	warnings := scoringparams.Warn(p)
	for _, w := range warnings {
		PrintWarning(fmt.Sprintf("%s: %s", w.Code, w.Message))
	}

	hash, err := scoringparams.Hash(p)
	if err != nil {
		return fmt.Errorf("hash params: %w", err)
	}
	PrintSuccess(fmt.Sprintf("%s is valid (%s %s, hash %s, %d warnings)", path, p.Meta.Name, p.Meta.Version, scoringparams.ShortHash(hash), len(warnings)))
	return nil
}

func runParamsReset(cmd *cobra.Command, args []string) error {
	path, err := paramsFile()
	if err != nil {
		return err
	}

	if _, err := scoringparams.Reset(path); err != nil {
		return fmt.Errorf("reset params: %w", err)
	}
	PrintSuccess(fmt.Sprintf("%s reset to the defaults", path))
	return nil
}

func runParamsSave(cmd *cobra.Command, args []string) error {
	path, err := paramsFile()
	if err != nil {
		return err
	}

	p, _, err := scoringparams.Load(args[0])
	if err != nil {
		return err
	}
	if err := scoringparams.Save(path, p); err != nil {
		return fmt.Errorf("save params: %w", err)
	}

	hash, err := scoringparams.Hash(p)
	if err != nil {
		return fmt.Errorf("hash params: %w", err)
	}
	PrintSuccess(fmt.Sprintf("%s saved as %s (hash %s)", args[0], path, scoringparams.ShortHash(hash)))
	return nil
}
