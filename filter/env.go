package filter

/*
Env is the environment available to moderation block expressions. Once this
struct is fixed it should not be changed, otherwise expressions stored in
existing configurations may not compile any more.
*/
type Env struct {
	UserId      string
	Name        string
	Role        string
	Message     string
	MessageType string
}
