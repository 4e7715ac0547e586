package dto

type CreateUserInput struct {
	Username    string  `json:"username" binding:"required,min=1,max=50"`
	Password    string  `json:"password" binding:"required"`
	DisplayName *string `json:"display_name"`
}

type CreateUserResponse struct {
	IdentityID string `json:"identity_id"`
	// Warning is set when the account was committed but the role grant
	// write failed; the account works with the implicit student default.
	Warning string `json:"warning,omitempty"`
}

type BulkCreateInput struct {
	Users []CreateUserInput `json:"users" binding:"required,min=1"`
}

type BulkCreateResponse struct {
	Created int      `json:"created"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}
