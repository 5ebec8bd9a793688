// AngelaMos | 2026
// table.go

package geo

type Tier int

const (
	TierHome Tier = iota
	TierRegional
	TierGulf
	TierWestern
)

type Country struct {
	Name       string
	Tier       Tier
	Multiplier float64
}

const (
	DefaultMultiplier  = 1.5
	FallbackMultiplier = 1.0
)

var countries = map[string]Country{
	"SO": {Name: "Somalia", Tier: TierHome, Multiplier: 1.0},
	"DJ": {Name: "Djibouti", Tier: TierHome, Multiplier: 1.0},
	"KE": {Name: "Kenya", Tier: TierRegional, Multiplier: 1.8},
	"ET": {Name: "Ethiopia", Tier: TierRegional, Multiplier: 1.5},
	"UG": {Name: "Uganda", Tier: TierRegional, Multiplier: 1.5},
	"TZ": {Name: "Tanzania", Tier: TierRegional, Multiplier: 1.5},
	"ER": {Name: "Eritrea", Tier: TierRegional, Multiplier: 1.3},
	"SD": {Name: "Sudan", Tier: TierRegional, Multiplier: 1.3},
	"SS": {Name: "South Sudan", Tier: TierRegional, Multiplier: 1.3},
	"RW": {Name: "Rwanda", Tier: TierRegional, Multiplier: 1.5},
	"BI": {Name: "Burundi", Tier: TierRegional, Multiplier: 1.3},
	"MG": {Name: "Madagascar", Tier: TierRegional, Multiplier: 1.3},
	"MZ": {Name: "Mozambique", Tier: TierRegional, Multiplier: 1.3},
	"ZW": {Name: "Zimbabwe", Tier: TierRegional, Multiplier: 1.5},
	"ZM": {Name: "Zambia", Tier: TierRegional, Multiplier: 1.5},
	"MW": {Name: "Malawi", Tier: TierRegional, Multiplier: 1.3},
	"CM": {Name: "Cameroon", Tier: TierRegional, Multiplier: 1.5},
	"GH": {Name: "Ghana", Tier: TierRegional, Multiplier: 1.8},
	"NG": {Name: "Nigeria", Tier: TierRegional, Multiplier: 1.8},
	"SN": {Name: "Senegal", Tier: TierRegional, Multiplier: 1.5},
	"CI": {Name: "Côte d'Ivoire", Tier: TierRegional, Multiplier: 1.5},
	"ML": {Name: "Mali", Tier: TierRegional, Multiplier: 1.5},
	"CD": {Name: "Congo - Kinshasa", Tier: TierRegional, Multiplier: 1.5},
	"AO": {Name: "Angola", Tier: TierRegional, Multiplier: 1.5},
	"GN": {Name: "Guinea", Tier: TierRegional, Multiplier: 1.5},
	"MR": {Name: "Mauritania", Tier: TierRegional, Multiplier: 1.5},
	"SZ": {Name: "Eswatini", Tier: TierRegional, Multiplier: 1.5},
	"GQ": {Name: "Equatorial Guinea", Tier: TierRegional, Multiplier: 1.5},
	"IN": {Name: "India", Tier: TierRegional, Multiplier: 1.8},
	"PK": {Name: "Pakistan", Tier: TierRegional, Multiplier: 1.5},
	"BD": {Name: "Bangladesh", Tier: TierRegional, Multiplier: 1.5},
	"NP": {Name: "Nepal", Tier: TierRegional, Multiplier: 1.3},
	"PH": {Name: "Philippines", Tier: TierRegional, Multiplier: 1.8},
	"ID": {Name: "Indonesia", Tier: TierRegional, Multiplier: 1.8},
	"AF": {Name: "Afghanistan", Tier: TierRegional, Multiplier: 1.5},
	"MM": {Name: "Myanmar", Tier: TierRegional, Multiplier: 1.5},
	"LA": {Name: "Laos", Tier: TierRegional, Multiplier: 1.5},
	"KH": {Name: "Cambodia", Tier: TierRegional, Multiplier: 1.5},
	"BT": {Name: "Bhutan", Tier: TierRegional, Multiplier: 1.5},
	"ZA": {Name: "South Africa", Tier: TierRegional, Multiplier: 2.0},
	"AE": {Name: "UAE", Tier: TierGulf, Multiplier: 2.5},
	"SA": {Name: "Saudi Arabia", Tier: TierGulf, Multiplier: 2.5},
	"QA": {Name: "Qatar", Tier: TierGulf, Multiplier: 2.5},
	"KW": {Name: "Kuwait", Tier: TierGulf, Multiplier: 2.5},
	"BH": {Name: "Bahrain", Tier: TierGulf, Multiplier: 2.5},
	"OM": {Name: "Oman", Tier: TierGulf, Multiplier: 2.5},
	"YE": {Name: "Yemen", Tier: TierGulf, Multiplier: 1.5},
	"IR": {Name: "Iran", Tier: TierGulf, Multiplier: 2.0},
	"JO": {Name: "Jordan", Tier: TierGulf, Multiplier: 2.0},
	"LB": {Name: "Lebanon", Tier: TierGulf, Multiplier: 2.0},
	"IQ": {Name: "Iraq", Tier: TierGulf, Multiplier: 2.0},
	"EG": {Name: "Egypt", Tier: TierGulf, Multiplier: 1.8},
	"MA": {Name: "Morocco", Tier: TierGulf, Multiplier: 2.0},
	"DZ": {Name: "Algeria", Tier: TierGulf, Multiplier: 2.0},
	"TN": {Name: "Tunisia", Tier: TierGulf, Multiplier: 2.0},
	"LY": {Name: "Libya", Tier: TierGulf, Multiplier: 2.0},
	"TR": {Name: "Turkey", Tier: TierGulf, Multiplier: 2.0},
	"LK": {Name: "Sri Lanka", Tier: TierGulf, Multiplier: 2.0},
	"VN": {Name: "Vietnam", Tier: TierGulf, Multiplier: 2.0},
	"MY": {Name: "Malaysia", Tier: TierGulf, Multiplier: 2.5},
	"SG": {Name: "Singapore", Tier: TierGulf, Multiplier: 2.5},
	"TH": {Name: "Thailand", Tier: TierGulf, Multiplier: 2.0},
	"HK": {Name: "Hong Kong", Tier: TierGulf, Multiplier: 2.5},
	"CN": {Name: "China", Tier: TierGulf, Multiplier: 2.5},
	"TW": {Name: "Taiwan", Tier: TierGulf, Multiplier: 2.5},
	"MX": {Name: "Mexico", Tier: TierGulf, Multiplier: 2.0},
	"BR": {Name: "Brazil", Tier: TierGulf, Multiplier: 2.0},
	"AR": {Name: "Argentina", Tier: TierGulf, Multiplier: 2.0},
	"CL": {Name: "Chile", Tier: TierGulf, Multiplier: 2.0},
	"CO": {Name: "Colombia", Tier: TierGulf, Multiplier: 2.0},
	"PE": {Name: "Peru", Tier: TierGulf, Multiplier: 2.0},
	"RU": {Name: "Russia", Tier: TierGulf, Multiplier: 2.0},
	"BY": {Name: "Belarus", Tier: TierGulf, Multiplier: 2.0},
	"KZ": {Name: "Kazakhstan", Tier: TierGulf, Multiplier: 2.0},
	"KG": {Name: "Kyrgyzstan", Tier: TierGulf, Multiplier: 2.0},
	"UZ": {Name: "Uzbekistan", Tier: TierGulf, Multiplier: 2.0},
	"AZ": {Name: "Azerbaijan", Tier: TierGulf, Multiplier: 2.0},
	"GE": {Name: "Georgia", Tier: TierGulf, Multiplier: 2.0},
	"AM": {Name: "Armenia", Tier: TierGulf, Multiplier: 2.0},
	"VE": {Name: "Venezuela", Tier: TierGulf, Multiplier: 2.0},
	"YT": {Name: "Mayotte", Tier: TierGulf, Multiplier: 2.0},
	"RE": {Name: "Réunion", Tier: TierGulf, Multiplier: 2.0},
	"JP": {Name: "Japan", Tier: TierGulf, Multiplier: 2.5},
	"KR": {Name: "South Korea", Tier: TierGulf, Multiplier: 2.5},
	"RO": {Name: "Romania", Tier: TierGulf, Multiplier: 2.0},
	"BG": {Name: "Bulgaria", Tier: TierGulf, Multiplier: 2.0},
	"RS": {Name: "Serbia", Tier: TierGulf, Multiplier: 2.0},
	"UA": {Name: "Ukraine", Tier: TierGulf, Multiplier: 2.0},
	"AL": {Name: "Albania", Tier: TierGulf, Multiplier: 2.0},
	"US": {Name: "USA", Tier: TierWestern, Multiplier: 3.0},
	"CA": {Name: "Canada", Tier: TierWestern, Multiplier: 3.0},
	"GB": {Name: "United Kingdom", Tier: TierWestern, Multiplier: 3.0},
	"SE": {Name: "Sweden", Tier: TierWestern, Multiplier: 3.0},
	"NO": {Name: "Norway", Tier: TierWestern, Multiplier: 3.0},
	"DK": {Name: "Denmark", Tier: TierWestern, Multiplier: 3.0},
	"FI": {Name: "Finland", Tier: TierWestern, Multiplier: 3.0},
	"DE": {Name: "Germany", Tier: TierWestern, Multiplier: 3.0},
	"NL": {Name: "Netherlands", Tier: TierWestern, Multiplier: 3.0},
	"FR": {Name: "France", Tier: TierWestern, Multiplier: 3.0},
	"CH": {Name: "Switzerland", Tier: TierWestern, Multiplier: 3.0},
	"AT": {Name: "Austria", Tier: TierWestern, Multiplier: 3.0},
	"BE": {Name: "Belgium", Tier: TierWestern, Multiplier: 3.0},
	"LU": {Name: "Luxembourg", Tier: TierWestern, Multiplier: 3.0},
	"AU": {Name: "Australia", Tier: TierWestern, Multiplier: 3.0},
	"NZ": {Name: "New Zealand", Tier: TierWestern, Multiplier: 3.0},
	"IE": {Name: "Ireland", Tier: TierWestern, Multiplier: 3.0},
	"IS": {Name: "Iceland", Tier: TierWestern, Multiplier: 3.0},
	"IL": {Name: "Israel", Tier: TierWestern, Multiplier: 3.0},
	"IT": {Name: "Italy", Tier: TierWestern, Multiplier: 2.5},
	"ES": {Name: "Spain", Tier: TierWestern, Multiplier: 2.5},
	"PT": {Name: "Portugal", Tier: TierWestern, Multiplier: 2.5},
	"PL": {Name: "Poland", Tier: TierWestern, Multiplier: 2.5},
	"GR": {Name: "Greece", Tier: TierWestern, Multiplier: 2.5},
	"CZ": {Name: "Czech Republic", Tier: TierWestern, Multiplier: 2.5},
	"HU": {Name: "Hungary", Tier: TierWestern, Multiplier: 2.5},
	"SK": {Name: "Slovakia", Tier: TierWestern, Multiplier: 2.5},
	"HR": {Name: "Croatia", Tier: TierWestern, Multiplier: 2.5},
	"SI": {Name: "Slovenia", Tier: TierWestern, Multiplier: 2.5},
	"LV": {Name: "Latvia", Tier: TierWestern, Multiplier: 2.5},
	"LI": {Name: "Liechtenstein", Tier: TierWestern, Multiplier: 3.0},
	"CY": {Name: "Cyprus", Tier: TierWestern, Multiplier: 2.5},
	"MT": {Name: "Malta", Tier: TierWestern, Multiplier: 2.5},
	"MC": {Name: "Monaco", Tier: TierWestern, Multiplier: 3.0},
	"AD": {Name: "Andorra", Tier: TierWestern, Multiplier: 3.0},
	"SM": {Name: "San Marino", Tier: TierWestern, Multiplier: 3.0},
	"VA": {Name: "Vatican City", Tier: TierWestern, Multiplier: 3.0},
}
