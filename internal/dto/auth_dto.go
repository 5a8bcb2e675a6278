package dto

// HealthResponse is returned by the unauthenticated liveness check.
type HealthResponse struct {
	Status string `json:"status"`
}

// AuthHealthResponse confirms the bearer token and echoes the resolved teacher.
type AuthHealthResponse struct {
	Status    string `json:"status"`
	TeacherID string `json:"teacher_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
}
