package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// readImage returns the image at path, or the next camera frame when path
// is empty.
func (c *cli) readImage(cmd *cobra.Command, path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		return data, nil
	}
	if c.core.Camera == nil {
		return nil, domain.ErrCameraUnavailable.WithError(errors.New("pass --image or enable the camera"))
	}
	frame, err := c.core.Camera.Capture(cmd.Context())
	if err != nil {
		return nil, err
	}
	return frame.Data, nil
}

func (c *cli) enrollCmd() *cobra.Command {
	var (
		imagePath string
		req       domain.EnrollmentRequest
		classes   string
	)

	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Enroll a student from an image file or the camera",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(req.Name) == "" {
				return errors.New("--name is required")
			}
			for _, class := range strings.Split(classes, ",") {
				if class = strings.TrimSpace(class); class != "" {
					req.Classes = append(req.Classes, class)
				}
			}

			image, err := c.readImage(cmd, imagePath)
			if err != nil {
				return err
			}

			record, err := c.core.Enrollment.Enroll(cmd.Context(), image, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enrolled %s (%s)\n", record.Name, record.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "image file (default: capture from the camera)")
	cmd.Flags().StringVar(&req.Name, "name", "", "student name")
	cmd.Flags().StringVar(&req.Email, "email", "", "student email")
	cmd.Flags().StringVar(&req.Role, "role", domain.RoleStudent, "student or teacher")
	cmd.Flags().StringVar(&classes, "classes", "", "comma separated class ids")
	return cmd
}

func (c *cli) recognizeCmd() *cobra.Command {
	var imagePath string

	cmd := &cobra.Command{
		Use:   "recognize",
		Short: "Identify the student in an image file or the camera",
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := c.readImage(cmd, imagePath)
			if err != nil {
				return err
			}

			result, err := c.core.Recognition.Recognize(cmd.Context(), image)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !result.Matched {
				fmt.Fprintf(out, "no match (%d faces)\n", len(result.Regions))
				return nil
			}
			fmt.Fprintf(out, "%s (%s) distance=%.4f\n", result.Student.Name, result.StudentID, result.Distance)
			return nil
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "image file (default: capture from the camera)")
	return cmd
}

func (c *cli) attendCmd() *cobra.Command {
	var (
		imagePath string
		classID   string
	)

	cmd := &cobra.Command{
		Use:   "attend",
		Short: "Mark attendance in a class for the recognised student",
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := c.readImage(cmd, imagePath)
			if err != nil {
				return err
			}

			result, err := c.core.Attendance.Mark(cmd.Context(), classID, image)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s present in %s (%d)\n", result.Name, result.ClassID, result.Count)
			return nil
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "image file (default: capture from the camera)")
	cmd.Flags().StringVar(&classID, "class", "", "class id")
	_ = cmd.MarkFlagRequired("class")
	return cmd
}

func (c *cli) studentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "students",
		Short: "List enrolled students",
		RunE: func(cmd *cobra.Command, args []string) error {
			students, err := c.core.Students.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(students) == 0 {
				fmt.Fprintln(out, "No students enrolled.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tROLE\tCLASSES\tENROLLED")
			for _, s := range students {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					s.ID, s.Name, s.Role, formatClasses(s.Classes), s.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

// formatClasses renders counters as "history=1 math=3", sorted by class.
func formatClasses(classes map[string]int) string {
	ids := make([]string, 0, len(classes))
	for id := range classes {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s=%d", id, classes[id])
	}
	return strings.Join(parts, " ")
}
