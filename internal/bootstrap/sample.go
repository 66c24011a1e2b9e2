package bootstrap

import "github.com/tgienger/projectflow/internal/models"

// SampleProjects is the first-run demo data
func SampleProjects() []models.Project {
	return []models.Project{
		{
			ID:          "proj-1",
			Name:        "Website Redesign",
			Description: "Complete overhaul of company website with modern design and improved user experience",
			Status:      models.ProjectActive,
			DueDate:     models.MustParseDate("2025-07-15"),
			CreatedDate: models.MustParseDate("2025-06-01"),
		},
		{
			ID:          "proj-2",
			Name:        "Mobile App Development",
			Description: "Develop cross-platform mobile application for iOS and Android",
			Status:      models.ProjectActive,
			DueDate:     models.MustParseDate("2025-08-30"),
			CreatedDate: models.MustParseDate("2025-06-15"),
		},
		{
			ID:          "proj-3",
			Name:        "Marketing Campaign",
			Description: "Q3 marketing campaign for product launch",
			Status:      models.ProjectCompleted,
			DueDate:     models.MustParseDate("2025-06-30"),
			CreatedDate: models.MustParseDate("2025-05-01"),
		},
	}
}

// SampleTasks belong to SampleProjects
func SampleTasks() []models.Task {
	return []models.Task{
		{
			ID:          "task-1",
			Title:       "Create wireframes",
			Description: "Design wireframes for all main pages",
			ProjectID:   "proj-1",
			Priority:    models.PriorityHigh,
			Status:      models.TaskCompleted,
			DueDate:     models.MustParseDate("2025-06-15"),
			CreatedDate: models.MustParseDate("2025-06-01"),
		},
		{
			ID:          "task-2",
			Title:       "Develop homepage",
			Description: "Code the new homepage with responsive design",
			ProjectID:   "proj-1",
			Priority:    models.PriorityHigh,
			Status:      models.TaskInProgress,
			DueDate:     models.MustParseDate("2025-07-01"),
			CreatedDate: models.MustParseDate("2025-06-10"),
		},
		{
			ID:          "task-3",
			Title:       "User testing",
			Description: "Conduct user testing sessions",
			ProjectID:   "proj-1",
			Priority:    models.PriorityMedium,
			Status:      models.TaskTodo,
			DueDate:     models.MustParseDate("2025-07-10"),
			CreatedDate: models.MustParseDate("2025-06-20"),
		},
		{
			ID:          "task-4",
			Title:       "API Development",
			Description: "Build REST API for mobile app",
			ProjectID:   "proj-2",
			Priority:    models.PriorityHigh,
			Status:      models.TaskInProgress,
			DueDate:     models.MustParseDate("2025-07-20"),
			CreatedDate: models.MustParseDate("2025-06-15"),
		},
		{
			ID:          "task-5",
			Title:       "UI Design",
			Description: "Create UI mockups for mobile app",
			ProjectID:   "proj-2",
			Priority:    models.PriorityMedium,
			Status:      models.TaskTodo,
			DueDate:     models.MustParseDate("2025-07-25"),
			CreatedDate: models.MustParseDate("2025-06-18"),
		},
		{
			ID:          "task-6",
			Title:       "Social Media Content",
			Description: "Create content for social media campaign",
			ProjectID:   "proj-3",
			Priority:    models.PriorityLow,
			Status:      models.TaskCompleted,
			DueDate:     models.MustParseDate("2025-06-25"),
			CreatedDate: models.MustParseDate("2025-05-15"),
		},
	}
}
