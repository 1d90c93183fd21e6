package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/eduvision/attendance/internal/attendance"
	"github.com/eduvision/attendance/internal/config"
	"github.com/eduvision/attendance/internal/detector"
	"github.com/eduvision/attendance/internal/recognition"
	"github.com/eduvision/attendance/internal/store"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <identity-id> <name> <image-file...>",
	Short: "Enroll an identity from face images",
	Long: `Enroll an identity from one or more face images. Each image
contributes its most prominent face as one enrollment sample; the samples
are averaged into the identity's canonical embedding.

Enrollment is create-only. To re-enroll an identity, delete it first:
  attendance identities delete <identity-id>

Use --dir to enroll in bulk from a directory where each subdirectory is one
identity (the subdirectory name is the identity id) containing its sample
images.

Examples:
  attendance enroll jane-doe "Jane Doe" photo1.jpg photo2.jpg
  attendance enroll --dir ./students`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("dir", "", "Enroll in bulk from a directory of per-identity subdirectories")
}

// isImageFile checks if a file has a supported image extension
func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".bmp":
		return true
	}
	return false
}

func readImages(paths []string) ([][]byte, error) {
	images := make([][]byte, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read image %s: %w", path, err)
		}
		images = append(images, data)
	}
	return images, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	dir := mustGetString(cmd, "dir")
	if dir == "" && len(args) < 3 {
		return errors.New("requires <identity-id> <name> <image-file...> or --dir")
	}

	cfg := config.Load()

	st, err := openStore(cfg, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	det := detector.NewClient(cfg.Detector.URL, cfg.Detector.MaxImageSize)
	svc := attendance.NewService(st, det, cfg.Matcher, store.NewIdentityIndex(), nil)
	if err := svc.RebuildIndex(context.Background()); err != nil {
		return fmt.Errorf("failed to build identity index: %w", err)
	}

	if dir != "" {
		return runEnrollDir(svc, dir)
	}

	id, name := args[0], args[1]
	images, err := readImages(args[2:])
	if err != nil {
		return err
	}

	identity, similar, err := svc.EnrollImages(context.Background(), id, name, images, time.Now())
	if err != nil {
		return fmt.Errorf("enrolling %s: %w", id, err)
	}

	fmt.Printf("Enrolled %s (%s) from %d sample(s)\n", identity.ID, identity.Name, identity.SampleCount)
	printSimilarWarnings(similar)
	return nil
}

func runEnrollDir(svc *attendance.Service, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("cannot read directory %s: %w", dir, err)
	}

	type pending struct {
		id     string
		images []string
	}
	var batch []pending
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		files, err := os.ReadDir(sub)
		if err != nil {
			return fmt.Errorf("cannot read directory %s: %w", sub, err)
		}
		var images []string
		for _, f := range files {
			if !f.IsDir() && isImageFile(f.Name()) {
				images = append(images, filepath.Join(sub, f.Name()))
			}
		}
		if len(images) > 0 {
			batch = append(batch, pending{id: entry.Name(), images: images})
		}
	}

	if len(batch) == 0 {
		fmt.Println("No identity subdirectories with images found.")
		return nil
	}

	fmt.Printf("Enrolling %d identit(ies) from %s\n\n", len(batch), dir)

	bar := progressbar.NewOptions(len(batch),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("identities"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	var enrollErrors []string
	enrolled := 0
	for _, p := range batch {
		images, err := readImages(p.images)
		if err != nil {
			enrollErrors = append(enrollErrors, fmt.Sprintf("%s: %v", p.id, err))
			bar.Add(1) //nolint:errcheck
			continue
		}

		// The subdirectory name doubles as the display name for bulk enrollment.
		_, similar, err := svc.EnrollImages(context.Background(), p.id, recognition.NormalizeName(p.id), images, time.Now())
		if err != nil {
			enrollErrors = append(enrollErrors, fmt.Sprintf("%s: %v", p.id, err))
			bar.Add(1) //nolint:errcheck
			continue
		}
		enrolled++
		bar.Add(1) //nolint:errcheck
		printSimilarWarnings(similar)
	}
	fmt.Println()

	for _, errMsg := range enrollErrors {
		fmt.Printf("Failed: %s\n", errMsg)
	}
	fmt.Printf("Enrolled %d/%d identit(ies)\n", enrolled, len(batch))

	if enrolled == 0 {
		return errors.New("no identities were enrolled successfully")
	}
	return nil
}

func printSimilarWarnings(similar []store.Neighbor) {
	for _, n := range similar {
		fmt.Printf("Warning: close to already-enrolled %s (%s), distance %.3f - possible duplicate\n",
			n.IdentityID, n.Name, n.Distance)
	}
}
