package lifecycle

import (
	"fmt"
	"html"

	"collabforcause/models"
)

func submissionNotice(task *models.Task, volunteer *models.User) models.Notification {
	who := volunteer.Name
	if who == "" {
		who = "A volunteer"
	}
	return models.Notification{
		UserID:  task.Project.CreatedBy,
		Kind:    models.NotifyContributionSubmitted,
		Subject: fmt.Sprintf("New submission for %q", task.Title),
		Body: fmt.Sprintf("<p>%s submitted work for <strong>%s</strong> in %s.</p><p>Review it from your dashboard.</p>",
			html.EscapeString(who), html.EscapeString(task.Title), html.EscapeString(task.Project.Title)),
		Status: models.NotificationPending,
	}
}

func reviewNotice(c *models.Contribution, decision models.ContributionStatus, feedback string) models.Notification {
	kind := models.NotifyContributionRejected
	verb := "needs changes"
	if decision == models.ContributionApproved {
		kind = models.NotifyContributionApproved
		verb = "was approved"
	}

	project := "your project"
	if c.Project != nil {
		project = c.Project.Title
	}
	body := fmt.Sprintf("<p>Your contribution to <strong>%s</strong> %s.</p>", html.EscapeString(project), verb)
	if feedback != "" {
		body += fmt.Sprintf("<p>Feedback: %s</p>", html.EscapeString(feedback))
	}

	return models.Notification{
		UserID:  c.VolunteerID,
		Kind:    kind,
		Subject: fmt.Sprintf("Your contribution %s", verb),
		Body:    body,
		Status:  models.NotificationPending,
	}
}
