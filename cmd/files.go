package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/nashr-app/nashr/internal/database"
	"github.com/nashr-app/nashr/internal/engine"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var filesAddFlags struct {
	Title        string
	Description  string
	Author       string
	Price        int64
	PreviewPages int
	Published    bool
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Manage the PDF catalogue",
}

var filesAddCmd = &cobra.Command{
	Use:   "add <file.pdf>",
	Short: "Import a PDF file into the catalogue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close() //nolint:errcheck

		return withEngine(func(e *engine.Engine) error {
			file, err := e.ImportFile(cmd.Context(), f, engine.FileInput{
				Title:        filesAddFlags.Title,
				Description:  filesAddFlags.Description,
				Author:       filesAddFlags.Author,
				Price:        filesAddFlags.Price,
				PreviewPages: filesAddFlags.PreviewPages,
				Published:    filesAddFlags.Published,
				FileName:     filepath.Base(args[0]),
			})
			if err != nil {
				return fmt.Errorf("failed to import file: %w", err)
			}
			fmt.Printf("Imported file %d: %s (%d pages)\n", file.ID, file.Title, file.TotalPages)
			return nil
		})
	},
}

var filesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all files, including unpublished ones",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(func(e *engine.Engine) error {
			files, err := e.ListFiles(cmd.Context(), true)
			if err != nil {
				return err
			}
			for _, f := range files {
				state := "published"
				if !f.Published {
					state = "hidden"
				}
				size, _ := safecast.ToUint64(f.SizeBytes)
				fmt.Printf("%4d  %-40s  %3d pages  %10s  %-9s  %s\n",
					f.ID, f.Title, f.TotalPages, humanize.Comma(f.Price), state, humanize.IBytes(size))
			}
			return nil
		})
	},
}

var filesExportCmd = &cobra.Command{
	Use:   "export <id> <out.pdf>",
	Short: "Write the stored PDF of a file without watermark",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 0)
		if err != nil {
			return fmt.Errorf("invalid file id %q", args[0])
		}

		return withEngine(func(e *engine.Engine) error {
			files, err := e.ListFiles(cmd.Context(), true)
			if err != nil {
				return err
			}
			file, ok := lo.Find(files, func(f database.File) bool { return uint64(f.ID) == id })
			if !ok {
				return engine.ErrFileNotFound
			}

			data, err := e.ReadDocument(&file)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], data, 0o600); err != nil {
				return err
			}
			log.Info("exported file", "id", file.ID, "path", args[1], "size", humanize.IBytes(uint64(len(data))))
			return nil
		})
	},
}

func init() {
	filesAddCmd.Flags().StringVar(&filesAddFlags.Title, "title", "", "Title of the file (default: the PDF title or the file name)")
	filesAddCmd.Flags().StringVar(&filesAddFlags.Description, "description", "", "Description shown in the catalogue")
	filesAddCmd.Flags().StringVar(&filesAddFlags.Author, "author", "", "Author of the file")
	filesAddCmd.Flags().Int64Var(&filesAddFlags.Price, "price", 0, "Price in toman, 0 for free")
	filesAddCmd.Flags().IntVar(&filesAddFlags.PreviewPages, "preview-pages", 0, "Pages readable without a license (default: viewer.default_preview_pages)")
	filesAddCmd.Flags().BoolVar(&filesAddFlags.Published, "published", true, "Show the file in the catalogue")

	filesCmd.AddCommand(filesAddCmd, filesListCmd, filesExportCmd)
	rootCmd.AddCommand(filesCmd)
}
