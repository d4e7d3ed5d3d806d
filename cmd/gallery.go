package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/faceservice"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Manage the known faces gallery",
}

var galleryBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Encode the known faces directory and save the gallery index",
	Long: `Encode every image in the known faces directory (KNOWN_FACES_DIR) through
the face service and save the result to the gallery index (GALLERY_INDEX_PATH
or --output).

The person's name is taken from the file name: alice_smith.jpg becomes
"Alice Smith". Images without a face are skipped with a warning.`,
	Args: cobra.NoArgs,
	RunE: runGalleryBuild,
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the people in the gallery index",
	Args:  cobra.NoArgs,
	RunE:  runGalleryList,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryBuildCmd)
	galleryCmd.AddCommand(galleryListCmd)

	galleryBuildCmd.Flags().String("output", "", "Index path (overrides GALLERY_INDEX_PATH)")
	galleryListCmd.Flags().String("index", "", "Index path (overrides GALLERY_INDEX_PATH)")
	galleryListCmd.Flags().Bool("json", false, "Output as JSON")
}

func runGalleryBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	output := mustGetString(cmd, "output")
	if output == "" {
		output = cfg.Gallery.IndexPath
	}
	if output == "" {
		return errors.New("no index path: set GALLERY_INDEX_PATH or pass --output")
	}

	client := faceservice.NewClient(cfg.FaceService.URL, cfg.FaceService.Timeout)
	fmt.Printf("Encoding known faces from %s via %s\n", cfg.Gallery.Dir, client.BaseURL())

	gallery, err := buildGallery(cmd.Context(), cfg, client, log, true)
	if err != nil {
		return fmt.Errorf("building gallery: %w", err)
	}
	if err := gallery.Save(output); err != nil {
		return err
	}

	fmt.Printf("\nSaved %d reference(s) for %d people to %s\n", gallery.Len(), len(gallery.Labels()), output)
	return nil
}

// GalleryListOutput is the JSON form of gallery list.
type GalleryListOutput struct {
	Path       string   `json:"path"`
	Tolerance  float64  `json:"tolerance"`
	References int      `json:"references"`
	People     []string `json:"people"`
}

func runGalleryList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path := mustGetString(cmd, "index")
	if path == "" {
		path = cfg.Gallery.IndexPath
	}
	if path == "" {
		return errors.New("no index path: set GALLERY_INDEX_PATH or pass --index")
	}

	gallery, err := facematch.LoadGallery(path, cfg.Gallery.Tolerance)
	if err != nil {
		return err
	}

	out := GalleryListOutput{
		Path:       path,
		Tolerance:  gallery.Tolerance(),
		References: gallery.Len(),
		People:     gallery.Labels(),
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(out)
	}

	fmt.Printf("Gallery %s (tolerance %.2f, %d references)\n", out.Path, out.Tolerance, out.References)
	for _, name := range out.People {
		fmt.Printf("  %s\n", name)
	}
	return nil
}
