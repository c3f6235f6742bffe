package dto

import "time"

type CheckoutRequest struct {
	CourseID int64 `json:"course_id"`
}

type CheckoutResponse struct {
	Success     bool   `json:"success"`
	PurchaseID  int64  `json:"purchase_id"`
	CheckoutURL string `json:"url"`
}

type WebhookResponse struct {
	Received bool `json:"received"`
}

type CourseDetailResponse struct {
	Course    CourseResponse    `json:"course"`
	Lectures  []LectureResponse `json:"lectures"`
	Purchased bool              `json:"purchased"`
}

type SaleResponse struct {
	PurchaseID  int64     `json:"purchase_id"`
	CourseID    int64     `json:"course_id"`
	UserID      int64     `json:"user_id"`
	CourseTitle string    `json:"course_title"`
	CoursePrice int64     `json:"course_price"`
	Amount      int64     `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

type InstructorSalesResponse struct {
	PurchasedCourse []SaleResponse `json:"purchased_course"`
}
