package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"keel/internal/index"
	"keel/internal/logging"
	"keel/internal/object"
	"keel/internal/repo"
)

var logger = logging.Nop()

var rootCmd = &cobra.Command{
	Use:   "keel",
	Short: "Keel is a content-addressed version control system",
	Long: `Keel tracks file content in a content-addressed object store and
stages changes through a git-compatible index file.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		l, err := logging.NewLogger(level)
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		logger = l
		return nil
	},
}

func openRepo() (*repo.Repository, *index.Index, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("getting current directory: %w", err)
	}
	r, err := repo.Open(dir, repo.Options{Logger: logger.Logger})
	if err != nil {
		return nil, nil, err
	}
	idx, err := r.Index()
	if err != nil {
		r.Close()
		return nil, nil, fmt.Errorf("opening index: %w", err)
	}
	return r, idx, nil
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize a new keel repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
			if err := repo.Init(dir); err != nil {
				return fmt.Errorf("initializing repository: %w", err)
			}
			fmt.Println("Initialized empty keel repository in", dir)
			return nil
		},
	}

	var addCmd = &cobra.Command{
		Use:   "add [patterns...]",
		Short: "Stage files matching the given patterns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, idx, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if err := idx.AddAll(args); err != nil {
				return fmt.Errorf("staging files: %w", err)
			}
			if err := idx.Write(); err != nil {
				return fmt.Errorf("writing index: %w", err)
			}
			fmt.Printf("Staged, index now holds %d entries\n", idx.Len())
			return nil
		},
	}

	var rmCmd = &cobra.Command{
		Use:   "rm [patterns...]",
		Short: "Unstage entries matching the given patterns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, idx, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if err := idx.RemoveAll(args); err != nil {
				return fmt.Errorf("unstaging files: %w", err)
			}
			if err := idx.Write(); err != nil {
				return fmt.Errorf("writing index: %w", err)
			}
			fmt.Printf("Unstaged, index now holds %d entries\n", idx.Len())
			return nil
		},
	}

	var lsCmd = &cobra.Command{
		Use:   "ls-index",
		Short: "List staged entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, idx, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			modeColor := color.New(color.FgCyan)
			conflictColor := color.New(color.FgRed, color.Bold)
			for _, e := range idx.Entries() {
				modeColor.Printf("%s ", e.Mode)
				fmt.Printf("%s ", e.ID.Hex())
				if e.Stage != index.StageNormal {
					conflictColor.Printf("%d ", e.Stage)
				}
				fmt.Println(e.Path)
			}
			return nil
		},
	}

	var writeTreeCmd = &cobra.Command{
		Use:   "write-tree",
		Short: "Write the staged entries as a tree and print its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, idx, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			id, err := idx.WriteTree()
			if err != nil {
				return fmt.Errorf("writing tree: %w", err)
			}
			fmt.Println(id.Hex())
			return nil
		},
	}

	var readTreeCmd = &cobra.Command{
		Use:   "read-tree <tree-id>",
		Short: "Replace the staged entries with the contents of a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := object.ParseID(args[0])
			if err != nil {
				return err
			}

			r, idx, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if err := idx.ReadTree(id); err != nil {
				return fmt.Errorf("reading tree: %w", err)
			}
			if err := idx.Write(); err != nil {
				return fmt.Errorf("writing index: %w", err)
			}
			fmt.Printf("Index now holds %d entries\n", idx.Len())
			return nil
		},
	}

	rootCmd.AddCommand(initCmd, addCmd, rmCmd, lsCmd, writeTreeCmd, readTreeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	logger.Sync()
}
