/*
Package gradebook is a small web dashboard that lets a student view their
grades from a shared Google Sheets gradebook.

A student signs in with their Google account, the dashboard derives the
student ID from the email address local part (e.g. 1801@gmail.com is
student 1801) and looks up the matching row in the first worksheet of the
configured spreadsheet. The spreadsheet itself is read with a read-only
service account - the student's OAuth grant only covers their profile.

The server is started with:

	gradebook

and is configured with a secrets.yaml file (spreadsheet id, OAuth client,
service account key) plus environment variables for the runtime settings
(listen address, session backend, logging).
*/
package gradebook
