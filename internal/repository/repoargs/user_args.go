package repoargs

type CreateUser struct {
	Login    string
	Password string
}
