package dto

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/karte/backend/internal/domain/karte"
)

// OpenSessionRequest starts an editing session. The author may instead be
// sent in the X-Author header.
type OpenSessionRequest struct {
	Author string `json:"author" binding:"max=100"`
}

// SessionResponse describes an editing session and its open record
type SessionResponse struct {
	SessionID string        `json:"sessionId"`
	Author    string        `json:"author"`
	Karte     KarteResponse `json:"karte"`
}

// UpdateFieldRequest sets one scalar field of the open record
type UpdateFieldRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

// FieldsDTO carries the scalar fields of a record
type FieldsDTO struct {
	TravelType        string `json:"travelType"`
	CompanyPerson     string `json:"companyPerson"`
	ClientCompany     string `json:"clientCompany"`
	ClientPerson      string `json:"clientPerson"`
	ClientPhone       string `json:"clientPhone"`
	ClientEmail       string `json:"clientEmail"`
	DepartureDate     string `json:"departureDate"`
	ReturnDate        string `json:"returnDate"`
	Nights            string `json:"nights"`
	DeparturePlace    string `json:"departurePlace"`
	Destination       string `json:"destination"`
	DestinationOther  string `json:"destinationOther"`
	TravelContent     string `json:"travelContent"`
	TotalPersons      string `json:"totalPersons"`
	TotalAmount       string `json:"totalAmount"`
	UnitPrice         string `json:"unitPrice"`
	PaymentTo         string `json:"paymentTo"`
	ArrangementStatus string `json:"arrangementStatus"`
	Memo              string `json:"memo"`
}

// PaymentDTO is a received payment in requests and responses
type PaymentDTO struct {
	ID      string `json:"id"`
	DueDate string `json:"dueDate"`
	Date    string `json:"date"`
	Amount  string `json:"amount"`
	Place   string `json:"place"`
	Notes   string `json:"notes"`
}

// ToDomain converts the DTO to a payment
func (p PaymentDTO) ToDomain() karte.Payment {
	return karte.Payment(p)
}

// ExpenseDTO is a vendor cost in requests and responses
type ExpenseDTO struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	Vendor  string `json:"vendor"`
	Phone   string `json:"phone"`
	Person  string `json:"person"`
	DueDate string `json:"dueDate"`
	Amount  string `json:"amount"`
	Status  string `json:"status"`
	Notes   string `json:"notes"`
}

// ToDomain converts the DTO to an expense
func (e ExpenseDTO) ToDomain() karte.Expense {
	return karte.Expense{
		ID:      e.ID,
		Date:    e.Date,
		Vendor:  e.Vendor,
		Phone:   e.Phone,
		Person:  e.Person,
		DueDate: e.DueDate,
		Amount:  e.Amount,
		Status:  karte.ExpenseStatus(e.Status),
		Notes:   e.Notes,
	}
}

// CommentRequest adds a comment. Images are base64, optionally as data URLs.
type CommentRequest struct {
	Text   string   `json:"text" binding:"max=10000"`
	Images []string `json:"images" binding:"max=10"`
}

// DecodeImages returns the raw bytes of every attached image
func (r CommentRequest) DecodeImages() ([][]byte, error) {
	out := make([][]byte, 0, len(r.Images))
	for i, img := range r.Images {
		if idx := strings.Index(img, ";base64,"); strings.HasPrefix(img, "data:") && idx >= 0 {
			img = img[idx+len(";base64,"):]
		}
		raw, err := base64.StdEncoding.DecodeString(img)
		if err != nil {
			return nil, fmt.Errorf("image %d is not valid base64", i+1)
		}
		out = append(out, raw)
	}
	return out, nil
}

// CommentDTO is a stored comment
type CommentDTO struct {
	ID     string    `json:"id"`
	Text   string    `json:"text"`
	Images []string  `json:"images"`
	Author string    `json:"author"`
	Date   time.Time `json:"date"`
}

// SalesItemDTO is one sales line in requests and responses
type SalesItemDTO struct {
	ID                   string `json:"id"`
	Category             string `json:"category"`
	ArrangementStatus    string `json:"arrangementStatus"`
	Content              string `json:"content"`
	UsageDate            string `json:"usageDate"`
	UnitPrice            string `json:"unitPrice"`
	PersonCount          string `json:"personCount"`
	TotalSales           string `json:"totalSales"`
	PaymentStatus        string `json:"paymentStatus"`
	PaymentTo            string `json:"paymentTo"`
	PaymentDate          string `json:"paymentDate"`
	PaymentContactPerson string `json:"paymentContactPerson"`
	PaymentContact       string `json:"paymentContact"`
}

// ToDomain converts the DTO to a sales line
func (s SalesItemDTO) ToDomain() karte.SalesItem {
	return karte.SalesItem{
		ID:                   s.ID,
		Category:             karte.SalesCategory(s.Category),
		ArrangementStatus:    karte.SalesArrangementStatus(s.ArrangementStatus),
		Content:              s.Content,
		UsageDate:            s.UsageDate,
		UnitPrice:            s.UnitPrice,
		PersonCount:          s.PersonCount,
		TotalSales:           s.TotalSales,
		PaymentStatus:        karte.PaymentStatus(s.PaymentStatus),
		PaymentTo:            karte.PaymentMethod(s.PaymentTo),
		PaymentDate:          s.PaymentDate,
		PaymentContactPerson: s.PaymentContactPerson,
		PaymentContact:       s.PaymentContact,
	}
}

// SalesDetailsDTO carries every sales line and the memo
type SalesDetailsDTO struct {
	Items []SalesItemDTO `json:"items"`
	Memo  string         `json:"memo"`
}

// ToDomain converts the DTO to sales details
func (d SalesDetailsDTO) ToDomain() karte.SalesDetails {
	items := make([]karte.SalesItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, item.ToDomain())
	}
	return karte.SalesDetails{Items: items, Memo: d.Memo}
}

// UpdateSalesItemRequest sets one field of a sales line
type UpdateSalesItemRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

// SalesMemoRequest sets the sales memo
type SalesMemoRequest struct {
	Memo string `json:"memo" binding:"max=10000"`
}

// SummaryDTO is the financial roll-up of a record. Amounts are decimal strings.
type SummaryDTO struct {
	TotalPayment    string  `json:"totalPayment"`
	TotalExpense    string  `json:"totalExpense"`
	Profit          string  `json:"profit"`
	ProfitRate      float64 `json:"profitRate"`
	ProfitPerPerson string  `json:"profitPerPerson"`
}

// KarteResponse is a full record with its summary
type KarteResponse struct {
	ID           string          `json:"id"`
	RecordNumber string          `json:"recordNumber"`
	State        string          `json:"state"`
	Revision     uint64          `json:"revision"`
	Fields       FieldsDTO       `json:"fields"`
	Payments     []PaymentDTO    `json:"payments"`
	Expenses     []ExpenseDTO    `json:"expenses"`
	Comments     []CommentDTO    `json:"comments"`
	SalesDetails SalesDetailsDTO `json:"salesDetails"`
	Summary      SummaryDTO      `json:"summary"`
	LastUpdated  *time.Time      `json:"lastUpdated,omitempty"`
	LastSaved    *time.Time      `json:"lastSaved,omitempty"`
}

// ToKarteResponse converts a snapshot to its API shape
func ToKarteResponse(s karte.Snapshot) KarteResponse {
	resp := KarteResponse{
		ID:           s.ID,
		RecordNumber: s.RecordNumber,
		State:        string(s.State),
		Revision:     s.Revision,
		Fields:       toFieldsDTO(s.Fields),
		Payments:     make([]PaymentDTO, 0, len(s.Payments)),
		Expenses:     make([]ExpenseDTO, 0, len(s.Expenses)),
		Comments:     make([]CommentDTO, 0, len(s.Comments)),
		SalesDetails: ToSalesDetailsDTO(s.SalesDetails),
		Summary:      ToSummaryDTO(s.Summary()),
		LastUpdated:  timePtr(s.LastUpdated),
		LastSaved:    timePtr(s.LastSaved),
	}
	for _, p := range s.Payments {
		resp.Payments = append(resp.Payments, PaymentDTO(p))
	}
	for _, e := range s.Expenses {
		resp.Expenses = append(resp.Expenses, ToExpenseDTO(e))
	}
	for _, c := range s.Comments {
		resp.Comments = append(resp.Comments, ToCommentDTO(c))
	}
	return resp
}

// ToSummaryDTO converts a summary
func ToSummaryDTO(s karte.Summary) SummaryDTO {
	return SummaryDTO{
		TotalPayment:    s.TotalPayment.String(),
		TotalExpense:    s.TotalExpense.String(),
		Profit:          s.Profit.String(),
		ProfitRate:      s.ProfitRate,
		ProfitPerPerson: s.ProfitPerPerson.String(),
	}
}

// ToExpenseDTO converts an expense
func ToExpenseDTO(e karte.Expense) ExpenseDTO {
	return ExpenseDTO{
		ID:      e.ID,
		Date:    e.Date,
		Vendor:  e.Vendor,
		Phone:   e.Phone,
		Person:  e.Person,
		DueDate: e.DueDate,
		Amount:  e.Amount,
		Status:  string(e.Status),
		Notes:   e.Notes,
	}
}

// ToCommentDTO converts a comment
func ToCommentDTO(c karte.Comment) CommentDTO {
	images := c.Images
	if images == nil {
		images = []string{}
	}
	return CommentDTO{ID: c.ID, Text: c.Text, Images: images, Author: c.Author, Date: c.Date}
}

// ToSalesItemDTO converts a sales line
func ToSalesItemDTO(s karte.SalesItem) SalesItemDTO {
	return SalesItemDTO{
		ID:                   s.ID,
		Category:             string(s.Category),
		ArrangementStatus:    string(s.ArrangementStatus),
		Content:              s.Content,
		UsageDate:            s.UsageDate,
		UnitPrice:            s.UnitPrice,
		PersonCount:          s.PersonCount,
		TotalSales:           s.TotalSales,
		PaymentStatus:        string(s.PaymentStatus),
		PaymentTo:            string(s.PaymentTo),
		PaymentDate:          s.PaymentDate,
		PaymentContactPerson: s.PaymentContactPerson,
		PaymentContact:       s.PaymentContact,
	}
}

// ToSalesDetailsDTO converts sales details
func ToSalesDetailsDTO(d karte.SalesDetails) SalesDetailsDTO {
	items := make([]SalesItemDTO, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, ToSalesItemDTO(item))
	}
	return SalesDetailsDTO{Items: items, Memo: d.Memo}
}

func toFieldsDTO(f karte.Fields) FieldsDTO {
	return FieldsDTO{
		TravelType:        string(f.TravelType),
		CompanyPerson:     f.CompanyPerson,
		ClientCompany:     f.ClientCompany,
		ClientPerson:      f.ClientPerson,
		ClientPhone:       f.ClientPhone,
		ClientEmail:       f.ClientEmail,
		DepartureDate:     f.DepartureDate,
		ReturnDate:        f.ReturnDate,
		Nights:            f.Nights,
		DeparturePlace:    f.DeparturePlace,
		Destination:       f.Destination,
		DestinationOther:  f.DestinationOther,
		TravelContent:     f.TravelContent,
		TotalPersons:      f.TotalPersons,
		TotalAmount:       f.TotalAmount,
		UnitPrice:         f.UnitPrice,
		PaymentTo:         f.PaymentTo,
		ArrangementStatus: string(f.ArrangementStatus),
		Memo:              f.Memo,
	}
}

// ListEntryResponse is one row of the record list
type ListEntryResponse struct {
	ID            string    `json:"id"`
	RecordNumber  string    `json:"recordNumber"`
	StaffName     string    `json:"staffName"`
	ClientName    string    `json:"clientName"`
	DepartureDate string    `json:"departureDate"`
	PersonCount   string    `json:"personCount"`
	Destination   string    `json:"destination"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// ToListEntryResponses converts list rows
func ToListEntryResponses(entries []karte.ListEntry) []ListEntryResponse {
	out := make([]ListEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ListEntryResponse{
			ID:            e.ID,
			RecordNumber:  e.Projection.RecordNumber,
			StaffName:     e.Projection.StaffName,
			ClientName:    e.Projection.ClientName,
			DepartureDate: e.Projection.DepartureDate,
			PersonCount:   e.Projection.PersonCount,
			Destination:   e.Projection.Destination,
			LastUpdated:   e.LastUpdated,
		})
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
