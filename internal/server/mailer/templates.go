package mailer

import (
	"bytes"
	"html/template"
)

var verificationTmpl = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html>
<body>
<h2>Welcome to PetMarket{{if .Name}}, {{.Name}}{{end}}!</h2>
<p>Please confirm your email address to finish creating your account.</p>
<p><a href="{{.Link}}">Verify my email</a></p>
<p>This link expires in {{.Validity}}. If you did not sign up, ignore this message.</p>
</body>
</html>`))

var resetTmpl = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body>
<h2>Reset your PetMarket password</h2>
<p>We received a request to reset the password for {{.Email}}.</p>
<p><a href="{{.Link}}">Choose a new password</a></p>
<p>This link expires in {{.Validity}}. If you did not request a reset, you can ignore this email.</p>
</body>
</html>`))

// VerificationEmail renders the signup confirmation message.
func VerificationEmail(name, link, validity string) (subject, html string, err error) {
	var buf bytes.Buffer
	err = verificationTmpl.Execute(&buf, map[string]string{"Name": name, "Link": link, "Validity": validity})
	return "Verify your PetMarket account", buf.String(), err
}

// PasswordResetEmail renders the forgot-password message.
func PasswordResetEmail(email, link, validity string) (subject, html string, err error) {
	var buf bytes.Buffer
	err = resetTmpl.Execute(&buf, map[string]string{"Email": email, "Link": link, "Validity": validity})
	return "Reset your PetMarket password", buf.String(), err
}
