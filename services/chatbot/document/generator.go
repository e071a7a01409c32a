// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package document renders a user's job application records into the flat
// markdown artifact that gets uploaded to the RAG backend. Rendering is a
// pure transformation; the file on disk is a transient per-owner artifact
// removed at session teardown.
package document

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ApplicationsData is the paged applications payload supplied by the
// frontend on session initialization.
type ApplicationsData struct {
	Items      []Application `json:"items"`
	TotalPages int           `json:"totalPages"`
}

// Application is one job application record.
type Application struct {
	ApplicationID      json.Number `json:"applicationId"`
	JobTitle           string      `json:"jobTitle"`
	JobType            string      `json:"jobType"`
	CompanyName        string      `json:"companyName"`
	Status             string      `json:"status"`
	Stage              string      `json:"stage"`
	SubmissionDate     string      `json:"submissionDate"`
	Description        string      `json:"description"`
	Link               string      `json:"link"`
	ATSScore           *float64    `json:"atsScore"`
	Company            Company     `json:"company"`
	ContactedEmployees []Employee  `json:"contactedEmployees"`
	CreatedAt          string      `json:"createdAt"`
	UpdatedAt          string      `json:"updatedAt"`
}

// Company holds employer details attached to an application.
type Company struct {
	Name         string `json:"name"`
	Location     string `json:"location"`
	CareersLink  string `json:"careersLink"`
	LinkedinLink string `json:"linkedinLink"`
}

// Employee is a referral contact attached to an application.
type Employee struct {
	Name         string `json:"name"`
	JobTitle     string `json:"jobTitle"`
	Email        string `json:"email"`
	LinkedinLink string `json:"linkedinLink"`
	Contacted    bool   `json:"contacted"`
	CreatedAt    string `json:"createdAt"`
}

// QuestionsData is the questions-and-answers payload supplied by the
// frontend on session initialization.
type QuestionsData struct {
	Items      []Question `json:"items"`
	TotalCount int        `json:"totalCount"`
}

// Question is one recorded interview/application question.
type Question struct {
	ApplicationID json.Number `json:"applicationId"`
	Question      string      `json:"question1"`
	Answer        string      `json:"answer"`
	CreatedAt     string      `json:"createdAt"`
}

// Path returns the transient artifact path for one owner.
func Path(dir, owner string) string {
	return filepath.Join(dir, fmt.Sprintf("job_applications_user_%s.md", owner))
}

// Render produces the markdown portfolio document from the applications
// and questions records. Output is deterministic apart from the generation
// timestamps.
func Render(apps ApplicationsData, questions QuestionsData) string {
	questionsByApp := make(map[string][]Question)
	for _, q := range questions.Items {
		key := q.ApplicationID.String()
		questionsByApp[key] = append(questionsByApp[key], q)
	}

	var b strings.Builder
	now := time.Now().Format("2006-01-02 15:04:05")

	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("# Job Applications Portfolio")
	line("Generated on: %s", now)
	line("---")
	line("")
	line("## Summary")
	line("Total Applications: %d", len(apps.Items))
	line("Total Questions Answered: %d", questions.TotalCount)
	line("")
	line("---")
	line("")

	for i, app := range apps.Items {
		appID := app.ApplicationID.String()

		line("## APPLICATION %d: %s at %s", i+1, app.JobTitle, app.CompanyName)
		line("")

		line("### Basic Information")
		line("• Application ID: %s", appID)
		line("• Job Title: %s", app.JobTitle)
		line("• Job Type: %s", app.JobType)
		line("• Company: %s", app.CompanyName)
		line("• Location: %s", app.Company.Location)
		line("• Application Status: %s", app.Status)
		line("• Current Stage: %s", app.Stage)
		line("• Submission Date: %s", app.SubmissionDate)
		if app.ATSScore != nil {
			line("• ATS Score: %.0f/100", *app.ATSScore)
		} else {
			line("• ATS Score: Not available")
		}
		line("")

		line("### Company Details")
		line("• Company Name: %s", app.Company.Name)
		line("• Location: %s", app.Company.Location)
		line("• Careers Website: %s", app.Company.CareersLink)
		line("• LinkedIn: %s", app.Company.LinkedinLink)
		line("")

		line("### Job Description")
		description := app.Description
		if description == "" {
			description = "No description available"
		}
		if len(description) > 100 {
			line("```")
			line("%s", description)
			line("```")
		} else {
			line("• %s", description)
		}
		line("")

		if app.Link != "" {
			line("### Application Link")
			line("• Job Posting URL: %s", app.Link)
			line("")
		}

		line("### Contacted Employees (Referrals)")
		if len(app.ContactedEmployees) > 0 {
			for _, emp := range app.ContactedEmployees {
				line("• **%s**", emp.Name)
				line("  - Job Title: %s", emp.JobTitle)
				line("  - Email: %s", emp.Email)
				line("  - LinkedIn: %s", emp.LinkedinLink)
				line("  - Contact Status: %t", emp.Contacted)
				line("  - Contacted Date: %s", datePart(emp.CreatedAt))
				line("")
			}
		} else {
			line("• No employees contacted for referrals")
			line("")
		}

		line("### Interview/Application Questions & Answers")
		if qs, ok := questionsByApp[appID]; ok {
			for j, qa := range qs {
				line("**Question %d:** %s", j+1, qa.Question)
				line("**Answer:** %s", qa.Answer)
				line("*Asked on: %s*", datePart(qa.CreatedAt))
				line("")
			}
		} else {
			line("• No questions recorded for this application")
			line("")
		}

		line("### Timeline")
		line("• Application Created: %s", datePart(app.CreatedAt))
		line("• Last Updated: %s", datePart(app.UpdatedAt))
		line("• Submission Date: %s", app.SubmissionDate)
		line("")
		line("---")
		line("")
	}

	line("## Document Metadata")
	line("• Total Applications Processed: %d", len(apps.Items))
	line("• Document Generated: %s", now)
	line("• Applications Data Pages: %d", max(apps.TotalPages, 1))
	line("• Questions Data Total: %d", questions.TotalCount)

	return b.String()
}

// Write persists the rendered document, creating the directory if needed.
func Write(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create document directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write document %s: %w", path, err)
	}
	slog.Info("portfolio document generated", "path", path, "bytes", len(content))
	return nil
}

// Remove deletes the local artifact. Missing files are fine; anything else
// is logged and swallowed since teardown must not fail on local cleanup.
func Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove local document artifact", "path", path, "error", err)
	}
}

// datePart trims an ISO timestamp to its date component.
func datePart(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}
