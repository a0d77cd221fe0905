package dictionary

// CurrentVersion is the dictionary version used when encoding.
const CurrentVersion uint8 = 1

// V1 covers the credential envelope vocabulary of VC Barcodes v0.7, the
// citizenship and driver's license subject vocabularies, and the status list
// terms. Append only.
var V1 = MustBuild(1, v1Terms, v1Values)

var v1Terms = []string{
	// credential envelope
	"@context",
	"id",
	"type",
	"issuer",
	"validFrom",
	"validUntil",
	"credentialSubject",
	"credentialStatus",
	"name",
	"description",

	// barcode binding
	"protectedComponentIndex",
	"opticalDataHash",

	// terse status entry
	"terseStatusListBaseUrl",
	"terseStatusListIndex",

	// status list credential
	"statusPurpose",
	"encodedList",
	"statusSize",
	"ttl",

	// person / identity document
	"givenName",
	"familyName",
	"birthDate",
	"birthPlace",
	"birthCountry",
	"gender",
	"nationality",
	"image",
	"identifier",
	"documentNumber",
	"documentType",
	"issuingCountry",
	"issuingAuthority",
	"issueDate",
	"expirationDate",
	"email",
	"phone",
	"ageOver18",
	"ageOver21",

	// permanent resident card
	"permanentResident",
	"residentSince",
	"lprCategory",
	"lprNumber",
	"commuterClassification",

	// driver's license
	"residentAddress",
	"residentCity",
	"residentState",
	"residentPostalCode",
	"height",
	"eyeColor",
	"drivingPrivileges",
	"vehicleClass",
	"restrictions",
	"endorsements",
}

var v1Values = []string{
	"https://www.w3.org/ns/credentials/v2",
	"https://w3id.org/vc-barcodes/v1",
	"https://w3id.org/citizenship/v2",
	"https://w3id.org/vdl/v2",
	"https://w3id.org/vdl/aamva/v1",
	"VerifiableCredential",
	"OpticalBarcodeCredential",
	"MachineReadableZone",
	"AamvaDriversLicenseScannableInformation",
	"TerseBitstringStatusListEntry",
	"BitstringStatusListCredential",
	"BitstringStatusList",
	"BitstringStatusListEntry",
	"revocation",
	"suspension",
	"message",
	"PermanentResidentCard",
	"PermanentResident",
	"Person",
	"Iso18013DriversLicenseCredential",
	"LicensedDriver",
}

func init() {
	register(V1)
}
