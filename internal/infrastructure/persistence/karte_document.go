package persistence

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/karte/backend/internal/domain/karte"
	"github.com/karte/backend/internal/domain/shared"
)

// karteDocument is the stored shape of a record. Field order is fixed so
// encoding the same snapshot twice yields identical bytes.
type karteDocument struct {
	TravelType        string                    `json:"travelType"`
	RecordNumber      string                    `json:"recordNumber"`
	CompanyPerson     string                    `json:"companyPerson"`
	ClientCompany     string                    `json:"clientCompany"`
	ClientPerson      string                    `json:"clientPerson"`
	ClientPhone       string                    `json:"clientPhone"`
	ClientEmail       string                    `json:"clientEmail"`
	DepartureDate     string                    `json:"departureDate"`
	ReturnDate        string                    `json:"returnDate"`
	Nights            string                    `json:"nights"`
	DeparturePlace    string                    `json:"departurePlace"`
	Destination       string                    `json:"destination"`
	DestinationOther  string                    `json:"destinationOther"`
	TravelContent     string                    `json:"travelContent"`
	TotalPersons      string                    `json:"totalPersons"`
	TotalAmount       string                    `json:"totalAmount"`
	UnitPrice         string                    `json:"unitPrice"`
	PaymentTo         string                    `json:"paymentTo"`
	ArrangementStatus string                    `json:"arrangementStatus"`
	Memo              string                    `json:"memo"`
	Payments          []paymentDocument         `json:"payments"`
	Expenses          []expenseDocument         `json:"expenses"`
	Comments          []commentDocument         `json:"comments"`
	SalesDetails      salesDetailsDocument      `json:"salesDetails"`
	SummaryProjection summaryProjectionDocument `json:"summaryProjection"`
}

type paymentDocument struct {
	ID      string `json:"id"`
	DueDate string `json:"dueDate"`
	Date    string `json:"date"`
	Amount  string `json:"amount"`
	Place   string `json:"place"`
	Notes   string `json:"notes"`
}

type expenseDocument struct {
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

type commentDocument struct {
	ID     string   `json:"id"`
	Text   string   `json:"text"`
	Images []string `json:"images"`
	Author string   `json:"author"`
	Date   string   `json:"date"`
}

type salesItemDocument struct {
	ID                   string `json:"id"`
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

// salesDetailsDocument stores sales lines grouped by category key
type salesDetailsDocument struct {
	Accommodation  []salesItemDocument `json:"accommodation"`
	Transportation []salesItemDocument `json:"transportation"`
	Meals          []salesItemDocument `json:"meals"`
	Others         []salesItemDocument `json:"others"`
	Memo           string              `json:"memo"`
}

type summaryProjectionDocument struct {
	RecordNumber  string `json:"recordNumber"`
	StaffName     string `json:"staffName"`
	ClientName    string `json:"clientName"`
	DepartureDate string `json:"departureDate"`
	PersonCount   string `json:"personCount"`
	Destination   string `json:"destination"`
}

func (d *salesDetailsDocument) group(c karte.SalesCategory) *[]salesItemDocument {
	switch c {
	case karte.SalesAccommodation:
		return &d.Accommodation
	case karte.SalesTransportation:
		return &d.Transportation
	case karte.SalesMeals:
		return &d.Meals
	}
	return &d.Others
}

// encodeKarte serializes a snapshot into its stored form. The destination
// is stored resolved, and the projection is recomputed.
func encodeKarte(s karte.Snapshot) ([]byte, error) {
	f := s.Fields
	doc := karteDocument{
		TravelType:        string(f.TravelType),
		RecordNumber:      s.RecordNumber,
		CompanyPerson:     f.CompanyPerson,
		ClientCompany:     f.ClientCompany,
		ClientPerson:      f.ClientPerson,
		ClientPhone:       f.ClientPhone,
		ClientEmail:       f.ClientEmail,
		DepartureDate:     f.DepartureDate,
		ReturnDate:        f.ReturnDate,
		Nights:            f.Nights,
		DeparturePlace:    f.DeparturePlace,
		Destination:       f.EffectiveDestination(),
		DestinationOther:  f.DestinationOther,
		TravelContent:     f.TravelContent,
		TotalPersons:      f.TotalPersons,
		TotalAmount:       f.TotalAmount,
		UnitPrice:         f.UnitPrice,
		PaymentTo:         f.PaymentTo,
		ArrangementStatus: string(f.ArrangementStatus),
		Memo:              f.Memo,
		Payments:          make([]paymentDocument, 0, len(s.Payments)),
		Expenses:          make([]expenseDocument, 0, len(s.Expenses)),
		Comments:          make([]commentDocument, 0, len(s.Comments)),
		SalesDetails:      flattenSales(s.SalesDetails),
	}
	for _, p := range s.Payments {
		doc.Payments = append(doc.Payments, paymentDocument(p))
	}
	for _, e := range s.Expenses {
		doc.Expenses = append(doc.Expenses, expenseDocument{
			ID: e.ID, Date: e.Date, Vendor: e.Vendor, Phone: e.Phone, Person: e.Person,
			DueDate: e.DueDate, Amount: e.Amount, Status: string(e.Status), Notes: e.Notes,
		})
	}
	for _, c := range s.Comments {
		doc.Comments = append(doc.Comments, commentDocument{
			ID:     c.ID,
			Text:   c.Text,
			Images: append([]string{}, c.Images...),
			Author: c.Author,
			Date:   c.Date.UTC().Format(time.RFC3339Nano),
		})
	}
	doc.SummaryProjection = summaryProjectionDocument(karte.ProjectSummary(s))
	return json.Marshal(doc)
}

// flattenSales groups the in-memory sales list into per-category arrays,
// keeping the relative order of lines within each category.
func flattenSales(d karte.SalesDetails) salesDetailsDocument {
	out := salesDetailsDocument{
		Accommodation:  []salesItemDocument{},
		Transportation: []salesItemDocument{},
		Meals:          []salesItemDocument{},
		Others:         []salesItemDocument{},
		Memo:           d.Memo,
	}
	for _, item := range d.Items {
		g := out.group(karte.NormalizeSalesCategory(item.Category))
		*g = append(*g, salesItemDocument{
			ID:                   item.ID,
			ArrangementStatus:    string(item.ArrangementStatus),
			Content:              item.Content,
			UsageDate:            item.UsageDate,
			UnitPrice:            item.UnitPrice,
			PersonCount:          item.PersonCount,
			TotalSales:           item.TotalSales,
			PaymentStatus:        string(item.PaymentStatus),
			PaymentTo:            string(item.PaymentTo),
			PaymentDate:          item.PaymentDate,
			PaymentContactPerson: item.PaymentContactPerson,
			PaymentContact:       item.PaymentContact,
		})
	}
	return out
}

// unflattenSales expands the per-category arrays into one list tagged by
// category, in category order.
func unflattenSales(d salesDetailsDocument) karte.SalesDetails {
	out := karte.SalesDetails{Items: []karte.SalesItem{}, Memo: d.Memo}
	for _, c := range karte.SalesCategories {
		for _, item := range *d.group(c) {
			out.Items = append(out.Items, karte.SalesItem{
				ID:                   item.ID,
				Category:             c,
				ArrangementStatus:    karte.SalesArrangementStatus(item.ArrangementStatus),
				Content:              item.Content,
				UsageDate:            item.UsageDate,
				UnitPrice:            item.UnitPrice,
				PersonCount:          item.PersonCount,
				TotalSales:           item.TotalSales,
				PaymentStatus:        karte.PaymentStatus(item.PaymentStatus),
				PaymentTo:            karte.PaymentMethod(item.PaymentTo),
				PaymentDate:          item.PaymentDate,
				PaymentContactPerson: item.PaymentContactPerson,
				PaymentContact:       item.PaymentContact,
			})
		}
	}
	return out
}

// toSnapshot maps a migrated document back into the domain shape
func (d karteDocument) toSnapshot(id string, updatedAt time.Time) karte.Snapshot {
	s := karte.Snapshot{
		ID:           id,
		RecordNumber: d.RecordNumber,
		Fields: karte.Fields{
			TravelType:        karte.TravelType(d.TravelType),
			CompanyPerson:     d.CompanyPerson,
			ClientCompany:     d.ClientCompany,
			ClientPerson:      d.ClientPerson,
			ClientPhone:       d.ClientPhone,
			ClientEmail:       d.ClientEmail,
			DepartureDate:     d.DepartureDate,
			ReturnDate:        d.ReturnDate,
			Nights:            d.Nights,
			DeparturePlace:    d.DeparturePlace,
			Destination:       d.Destination,
			DestinationOther:  d.DestinationOther,
			TravelContent:     d.TravelContent,
			TotalPersons:      d.TotalPersons,
			TotalAmount:       d.TotalAmount,
			UnitPrice:         d.UnitPrice,
			PaymentTo:         d.PaymentTo,
			ArrangementStatus: karte.ArrangementStatus(d.ArrangementStatus),
			Memo:              d.Memo,
		},
		Payments:     make([]karte.Payment, 0, len(d.Payments)),
		Expenses:     make([]karte.Expense, 0, len(d.Expenses)),
		Comments:     make([]karte.Comment, 0, len(d.Comments)),
		SalesDetails: unflattenSales(d.SalesDetails),
		State:        karte.StateLoaded,
		LastUpdated:  updatedAt,
	}
	for _, p := range d.Payments {
		s.Payments = append(s.Payments, karte.Payment(p))
	}
	for _, e := range d.Expenses {
		s.Expenses = append(s.Expenses, karte.Expense{
			ID: e.ID, Date: e.Date, Vendor: e.Vendor, Phone: e.Phone, Person: e.Person,
			DueDate: e.DueDate, Amount: e.Amount, Status: karte.ExpenseStatus(e.Status), Notes: e.Notes,
		})
	}
	for _, c := range d.Comments {
		date, _ := time.Parse(time.RFC3339Nano, c.Date)
		s.Comments = append(s.Comments, karte.Comment{
			ID:     c.ID,
			Text:   c.Text,
			Images: append([]string{}, c.Images...),
			Author: c.Author,
			Date:   date.UTC(),
		})
	}
	return s
}

// legacyExpenseStatus maps the labels older documents stored
var legacyExpenseStatus = map[string]karte.ExpenseStatus{
	"未手配":  karte.ExpenseUnarranged,
	"手配中":  karte.ExpenseArranging,
	"手配完了": karte.ExpenseArranged,
	"支払済み": karte.ExpensePaid,
}

var (
	karteStringFields = []string{
		"travelType", "recordNumber", "companyPerson", "clientCompany", "clientPerson",
		"clientPhone", "clientEmail", "departureDate", "returnDate", "nights",
		"departurePlace", "destination", "destinationOther", "travelContent", "totalPersons",
		"totalAmount", "unitPrice", "paymentTo", "arrangementStatus", "memo",
	}
	paymentStringFields   = []string{"id", "dueDate", "date", "amount", "place", "notes"}
	expenseStringFields   = []string{"id", "date", "vendor", "phone", "person", "dueDate", "amount", "status", "notes"}
	commentStringFields   = []string{"id", "text", "author", "date"}
	salesItemStringFields = []string{
		"id", "arrangementStatus", "content", "usageDate", "unitPrice", "personCount",
		"totalSales", "paymentStatus", "paymentTo", "paymentDate", "paymentContactPerson", "paymentContact",
	}
	projectionStringFields = []string{"recordNumber", "staffName", "clientName", "departureDate", "personCount", "destination"}
)

// migrateKarteDocument is the single place where stored records are brought
// up to the current shape. It runs once per load and handles:
//   - karteNo renamed to recordNumber and karteInfo renamed to summaryProjection
//   - numbers stored as JSON numbers, and missing or null values
//   - missing travelType, arrangementStatus and expense status defaults
//   - legacy expense status labels and the unpaid sales payment status
//   - collection entries stored without an id
func migrateKarteDocument(raw []byte, newID shared.IDGenerator) (karteDocument, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return karteDocument{}, fmt.Errorf("decode karte document: %w", err)
	}

	if _, ok := m["recordNumber"]; !ok {
		if legacy, ok := m["karteNo"]; ok {
			m["recordNumber"] = legacy
		}
	}
	delete(m, "karteNo")
	if _, ok := m["summaryProjection"]; !ok {
		if info, ok := m["karteInfo"].(map[string]any); ok {
			m["summaryProjection"] = map[string]any{
				"recordNumber":  info["karteNo"],
				"staffName":     info["tantosha"],
				"clientName":    info["dantaiName"],
				"departureDate": info["departureDate"],
				"personCount":   info["personCount"],
				"destination":   info["destination"],
			}
		}
	}
	delete(m, "karteInfo")
	delete(m, "lastUpdated")

	stringifyFields(m, karteStringFields)
	if !karte.TravelType(m["travelType"].(string)).IsValid() {
		m["travelType"] = string(karte.TravelTypeDomestic)
	}
	if !karte.ArrangementStatus(m["arrangementStatus"].(string)).IsValid() {
		m["arrangementStatus"] = string(karte.ArrangementNotStarted)
	}

	m["payments"] = migrateEntries(m["payments"], paymentStringFields, newID, nil)
	m["expenses"] = migrateEntries(m["expenses"], expenseStringFields, newID, func(e map[string]any) {
		status := e["status"].(string)
		if mapped, ok := legacyExpenseStatus[status]; ok {
			status = string(mapped)
		}
		if !karte.ExpenseStatus(status).IsValid() {
			status = string(karte.ExpenseUnarranged)
		}
		e["status"] = status
	})
	m["comments"] = migrateEntries(m["comments"], commentStringFields, newID, func(c map[string]any) {
		c["images"] = stringSlice(c["images"])
	})

	sales, _ := m["salesDetails"].(map[string]any)
	if sales == nil {
		sales = map[string]any{}
	}
	for _, c := range karte.SalesCategories {
		sales[string(c)] = migrateEntries(sales[string(c)], salesItemStringFields, newID, migrateSalesItem)
	}
	sales["memo"] = asString(sales["memo"])
	m["salesDetails"] = sales

	projection, _ := m["summaryProjection"].(map[string]any)
	if projection == nil {
		projection = map[string]any{}
	}
	stringifyFields(projection, projectionStringFields)
	m["summaryProjection"] = projection

	normalized, err := json.Marshal(m)
	if err != nil {
		return karteDocument{}, fmt.Errorf("re-encode karte document: %w", err)
	}
	var doc karteDocument
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return karteDocument{}, fmt.Errorf("decode migrated karte document: %w", err)
	}
	if doc.SummaryProjection == (summaryProjectionDocument{}) {
		doc.SummaryProjection = summaryProjectionDocument(karte.ProjectSummary(doc.toSnapshot("", time.Time{})))
	}
	return doc, nil
}

func migrateSalesItem(item map[string]any) {
	switch item["paymentStatus"] {
	case string(karte.PaymentUnpaidLegacy), "":
		item["paymentStatus"] = string(karte.PaymentScheduled)
	}
	if item["arrangementStatus"] == "" {
		item["arrangementStatus"] = string(karte.SalesNotArranged)
	}
}

// migrateEntries normalizes a stored array of objects. Non-array values
// become an empty array and non-object elements are dropped.
func migrateEntries(v any, fields []string, newID shared.IDGenerator, fix func(map[string]any)) []any {
	list, _ := v.([]any)
	out := make([]any, 0, len(list))
	for _, el := range list {
		entry, ok := el.(map[string]any)
		if !ok {
			continue
		}
		stringifyFields(entry, fields)
		if entry["id"] == "" {
			entry["id"] = newID()
		}
		if fix != nil {
			fix(entry)
		}
		out = append(out, entry)
	}
	return out
}

func stringifyFields(m map[string]any, fields []string) {
	for _, f := range fields {
		m[f] = asString(m[f])
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func stringSlice(v any) []any {
	list, _ := v.([]any)
	out := make([]any, 0, len(list))
	for _, el := range list {
		if s, ok := el.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
