package schema

import "github.com/joelkehle/kontrata/internal/contract"

// Tables mirror the inputs each renderer template reads. Keep them in step
// with internal/render/templates.
var Tables = map[contract.Category][]Field{
	contract.CategoryEmployment: {
		{Name: "employer_name", Aliases: []string{"employer", "company"}, Default: "[EMPLOYER]", DefaultKind: DefaultPlaceholder},
		{Name: "employee_name", Aliases: []string{"employee"}, Default: "[EMPLOYEE]", DefaultKind: DefaultPlaceholder},
		{Name: "position", Aliases: []string{"job title", "role"}, Default: "[POSITION]", DefaultKind: DefaultPlaceholder},
		{Name: "salary", Aliases: []string{"monthly salary", "basic salary", "wage"}, Default: "[SALARY]", DefaultKind: DefaultPlaceholder},
		{Name: "start_date", Aliases: []string{"starting date", "commencement date", "start"}, DefaultKind: DefaultToday},
		{Name: "employment_type", Aliases: []string{"type of employment", "employment status"}, Default: "Regular", DefaultKind: DefaultMeaningful},
		{Name: "work_hours", Aliases: []string{"working hours", "work schedule"}, Default: "8 hours per day, Monday to Friday", DefaultKind: DefaultMeaningful},
		{Name: "benefits", Default: "As per company policy", DefaultKind: DefaultMeaningful},
		{Name: "place_of_work", Aliases: []string{"work location", "workplace"}, Default: "the Employer's principal place of business", DefaultKind: DefaultMeaningful},
	},
	contract.CategoryPartnership: {
		{Name: "partner_names", Aliases: []string{"partners"}, Default: "[PARTNERS]", DefaultKind: DefaultPlaceholder, Multi: true},
		{Name: "business_name", Aliases: []string{"partnership name", "firm name"}, Default: "[BUSINESS NAME]", DefaultKind: DefaultPlaceholder},
		{Name: "partnership_type", Aliases: []string{"type of partnership"}, Default: "General", DefaultKind: DefaultMeaningful},
		{Name: "capital_contribution", Aliases: []string{"capital", "contribution"}, Default: "[CAPITAL AMOUNT]", DefaultKind: DefaultPlaceholder},
		{Name: "profit_sharing_ratio", Aliases: []string{"profit sharing", "profit ratio", "profit split"}, Default: "[RATIO]", DefaultKind: DefaultPlaceholder},
		{Name: "business_address", Aliases: []string{"address", "place of business"}, Default: "[BUSINESS ADDRESS]", DefaultKind: DefaultPlaceholder},
		{Name: "business_purpose", Aliases: []string{"purpose"}, Default: "conducting lawful business activities", DefaultKind: DefaultMeaningful},
		{Name: "principal_office", Default: "as per business address", DefaultKind: DefaultMeaningful},
	},
	contract.CategoryLease: {
		{Name: "lessor_name", Aliases: []string{"lessor", "landlord"}, Default: "[LESSOR NAME]", DefaultKind: DefaultPlaceholder},
		{Name: "lessee_name", Aliases: []string{"lessee", "tenant"}, Default: "[LESSEE NAME]", DefaultKind: DefaultPlaceholder},
		{Name: "property_address", Aliases: []string{"property location", "address"}, Default: "[PROPERTY ADDRESS]", DefaultKind: DefaultPlaceholder},
		{Name: "property_description", Aliases: []string{"property"}, Default: "[PROPERTY DESCRIPTION]", DefaultKind: DefaultPlaceholder},
		{Name: "rental_amount", Aliases: []string{"monthly rent", "rent", "rental"}, Default: "[RENTAL AMOUNT]", DefaultKind: DefaultPlaceholder},
		{Name: "lease_period", Aliases: []string{"lease term", "lease duration", "term", "duration"}, Default: "[LEASE PERIOD]", DefaultKind: DefaultPlaceholder},
		{Name: "payment_terms", Aliases: []string{"payment"}, Default: "monthly in advance", DefaultKind: DefaultMeaningful},
		{Name: "property_use", Aliases: []string{"use"}, Default: "residential/commercial", DefaultKind: DefaultMeaningful},
	},
	contract.CategoryBuySell: {
		{Name: "seller_name", Aliases: []string{"seller"}, Default: "[SELLER]", DefaultKind: DefaultPlaceholder},
		{Name: "buyer_name", Aliases: []string{"buyer"}, Default: "[BUYER]", DefaultKind: DefaultPlaceholder},
		{Name: "item_description", Aliases: []string{"item", "goods"}, Default: "[ITEM DESCRIPTION]", DefaultKind: DefaultPlaceholder},
		{Name: "purchase_price", Aliases: []string{"price", "amount"}, Default: "[PRICE]", DefaultKind: DefaultPlaceholder},
		{Name: "payment_terms", Aliases: []string{"payment"}, Default: "Full payment upon delivery", DefaultKind: DefaultMeaningful},
		{Name: "delivery_date", Aliases: []string{"delivery"}, Default: "[DELIVERY DATE]", DefaultKind: DefaultPlaceholder},
		{Name: "delivery_place", Aliases: []string{"place of delivery", "delivery location"}, Default: "[DELIVERY PLACE]", DefaultKind: DefaultPlaceholder},
		{Name: "delivery_method", Aliases: []string{"mode of delivery"}, Default: "Personal handover / Courier, as agreed", DefaultKind: DefaultMeaningful},
		{Name: "delivery_cost", Aliases: []string{"delivery costs"}, Default: "shouldered by the Buyer as agreed", DefaultKind: DefaultMeaningful},
		{Name: "warranty", Default: "The item is in good and serviceable condition at the time of sale, as agreed.", DefaultKind: DefaultMeaningful},
	},
}
