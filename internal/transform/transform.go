package transform

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gogotex/gogotex/backend/user-sync/internal/models"
)

var previewHeaders = []string{"Name", "Email", "Employee ID", "Department"}

// Preview writes a table of the users followed by the total count.
// It writes exactly one table row per user.
func Preview(w io.Writer, users []models.DirectoryUser) error {
	if _, err := fmt.Fprintln(w, "\n=== User Import Preview ==="); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.Debug)
	fmt.Fprintln(tw, strings.Join(previewHeaders, "\t")+"\t")
	fmt.Fprintln(tw, rule(len(previewHeaders)))
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", cell(u.Name), cell(u.Email), cell(u.EmployeeID), cell(u.Department))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nTotal users to import: %d\n", len(users))
	return err
}

func rule(cols int) string {
	return strings.Repeat("---\t", cols)
}

// cell keeps tabs and newlines in directory values from breaking the table.
func cell(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
}

// Normalize maps each directory user to a store document stamped with now.
// The result always has the same length as users.
func Normalize(users []models.DirectoryUser, now time.Time) []models.UserDocument {
	docs := make([]models.UserDocument, 0, len(users))
	for _, u := range users {
		docs = append(docs, models.UserDocument{
			Name:       u.Name,
			Email:      u.Email,
			EmployeeID: u.EmployeeID,
			Department: u.Department,
			Mobile:     "",
			Role:       models.DefaultRole,
			Active:     true,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return docs
}
