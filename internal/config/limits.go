package config

const (
	// MaxUploadSize is the largest receipt file accepted, in bytes (10 MiB).
	MaxUploadSize = 10 << 20

	// MaxMultipartMemory is the in-memory budget for a multipart form.
	// The file part alone may reach MaxUploadSize, so leave room for the text fields.
	MaxMultipartMemory = MaxUploadSize + 1<<20

	// MaxFolderNameLength matches folders.folder_name VARCHAR(100).
	MaxFolderNameLength = 100

	// MaxFolderDescriptionLength matches folders.description VARCHAR(100).
	MaxFolderDescriptionLength = 100

	// MaxPurchaseDescriptionLength matches purchases.description VARCHAR(75).
	MaxPurchaseDescriptionLength = 75

	// MaxGuestNameLength matches purchases.guest_name VARCHAR(100).
	MaxGuestNameLength = 100

	// MaxValidationNotesLength matches validation_notes VARCHAR(200).
	MaxValidationNotesLength = 200

	// MaxDocumentPathLength matches purchases.img_url VARCHAR(255).
	MaxDocumentPathLength = 255

	// MaxFilenameLength bounds the client-supplied receipt filename.
	MaxFilenameLength = 255

	// MaxNameLength bounds first/last names and nicknames.
	MaxNameLength = 50

	// MinPasswordLength is enforced on self-service password changes.
	MinPasswordLength = 8
)

// AllowedUploadTypes lists the receipt MIME types accepted for upload.
var AllowedUploadTypes = map[string]bool{
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"image/heic":      true,
	"application/pdf": true,
}
